//go:build windows

package tool

import "syscall"

// createNoWindow keeps the console programmer from flashing up a terminal
// window for every invocation.
const createNoWindow = 0x08000000

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
