//go:build unix

package process

import "syscall"

// detachedAttr puts the worker in its own process group so terminal signals
// sent to the submitting CLI do not reach it.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
