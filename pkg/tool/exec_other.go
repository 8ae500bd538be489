//go:build !windows

package tool

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
