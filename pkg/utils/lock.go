package utils

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the working directory for the duration of a run.
const LockFileName = ".docbatch.lock"

// ErrLocked is returned when another run holds the working directory lock.
var ErrLocked = errors.New("another docbatch run is already using this directory")

// WorkDirLock is an exclusive, non-blocking lock on a working directory.
type WorkDirLock struct {
	lock *flock.Flock
}

// AcquireWorkDirLock takes the lock for workDir or fails immediately.
//
// RETURNS:
//   - The held lock; call Release when the run ends.
//   - ErrLocked (wrapped) if another process holds it.
func AcquireWorkDirLock(workDir string) (*WorkDirLock, error) {
	path := filepath.Join(workDir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
	}
	return &WorkDirLock{lock: lock}, nil
}

// Path returns the lock file path.
func (l *WorkDirLock) Path() string { return l.lock.Path() }

// Release unlocks. The lock file itself is left in place.
func (l *WorkDirLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
