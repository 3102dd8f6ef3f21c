//go:build !linux

package engine

import "errors"

var errUnsupported = errors.New("supervision requires linux")

// NewKernel reports that the current platform is not supported.
func NewKernel() (Kernel, error) {
	return nil, errUnsupported
}

func becomeSubreaper() error {
	return errUnsupported
}
