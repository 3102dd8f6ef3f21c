//go:build !linux

// Package tty arbitrates the foreground process group of the supervisor's
// controlling terminal.
package tty

// Arbiter is unavailable on this platform.
type Arbiter struct{}

// Detect always reports no terminal on this platform.
func Detect(fd int) *Arbiter { return nil }

// Handover is a no-op on this platform.
func (a *Arbiter) Handover(pgid int) error { return nil }

// Reclaim is a no-op on this platform.
func (a *Arbiter) Reclaim() error { return nil }
