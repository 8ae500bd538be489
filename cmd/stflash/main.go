package main

import "github.com/OpenTraceLab/OpenTraceFlash/cmd/stflash/cmd"

func main() {
	cmd.Execute()
}
