// Package pidfile records the supervisor's pid in a file that stays locked for
// as long as the supervisor runs, so a second instance pointed at the same
// path refuses to start.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another live process holds the pidfile.
var ErrLocked = errors.New("pidfile locked by another process")

// File is an acquired pidfile.
type File struct {
	path string
	lock *flock.Flock
}

// Acquire locks path and writes pid into it.
func Acquire(path string, pid int) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pidfile directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock pidfile %s: %w", path, err)
	}
	if !locked {
		if other, err := Read(path); err == nil {
			return nil, fmt.Errorf("%s: %w (pid %d)", path, ErrLocked, other)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	// The lock lives on the inode, so rewriting the contents keeps it held.
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pidfile %s: %w", path, err)
	}
	return &File{path: path, lock: lock}, nil
}

// Path returns the location of the pidfile.
func (f *File) Path() string {
	return f.path
}

// Release removes the pidfile and drops the lock.
func (f *File) Release() error {
	removeErr := os.Remove(f.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock pidfile %s: %w", f.path, err)
	}
	if removeErr != nil {
		return fmt.Errorf("remove pidfile: %w", removeErr)
	}
	return nil
}

// Read returns the pid recorded in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pidfile %s: %w", path, err)
	}
	return pid, nil
}
