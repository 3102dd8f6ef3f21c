//go:build linux

// Package tty arbitrates the foreground process group of the supervisor's
// controlling terminal.
package tty

import (
	"fmt"
	goruntime "runtime"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Arbiter moves the terminal's foreground process group between the
// supervisor and one interactive job.
type Arbiter struct {
	fd   int
	pgrp int
}

// Detect returns an Arbiter for fd when fd is a terminal whose foreground
// process group is the caller's own group. Otherwise it returns nil.
func Detect(fd int) *Arbiter {
	if !term.IsTerminal(fd) {
		return nil
	}
	fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return nil
	}
	self := unix.Getpgrp()
	if fg != self {
		return nil
	}
	return &Arbiter{fd: fd, pgrp: self}
}

// Handover makes pgid the terminal's foreground process group.
func (a *Arbiter) Handover(pgid int) error {
	return a.setForeground(pgid)
}

// Reclaim returns the terminal to the supervisor's process group.
func (a *Arbiter) Reclaim() error {
	return a.setForeground(a.pgrp)
}

func (a *Arbiter) setForeground(pgid int) error {
	// A background group calling tcsetpgrp gets SIGTTOU unless the calling
	// thread blocks it, so pin the goroutine and mask it for the ioctl.
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	var block, prev unix.Sigset_t
	sigaddset(&block, unix.SIGTTOU)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &block, &prev); err != nil {
		return fmt.Errorf("block SIGTTOU: %w", err)
	}
	defer func() { _ = unix.PthreadSigmask(unix.SIG_SETMASK, &prev, nil) }()

	if err := unix.IoctlSetPointerInt(a.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("set foreground process group %d: %w", pgid, err)
	}
	return nil
}

func sigaddset(set *unix.Sigset_t, sig unix.Signal) {
	n := uint(sig - 1)
	width := uint(unsafe.Sizeof(set.Val[0])) * 8
	set.Val[n/width] |= 1 << (n % width)
}
