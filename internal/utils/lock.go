package utils

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const LockFileName = ".cloudsync.lock"

var ErrLocked = errors.New("another cloudsync run holds the lock")

// DirLock guards a local tree against concurrent runs.
type DirLock struct {
	lock *flock.Flock
}

// LockDir takes the lock file in dir without blocking.
func LockDir(dir string) (*DirLock, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	return &DirLock{lock: lock}, nil
}

func (l *DirLock) Path() string {
	return l.lock.Path()
}

func (l *DirLock) Unlock() error {
	return l.lock.Unlock()
}
