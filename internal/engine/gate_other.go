//go:build !linux

package engine

import "golang.org/x/sys/unix"

const powerFailSignal unix.Signal = 0
