package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DataLock guards the data directory against concurrent writers. Two
// processes syncing the same stores would corrupt the vector graph, so
// every mutating command takes this lock first.
type DataLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataLock creates a lock at the given path, conventionally
// <data-dir>/mindvault.lock.
func NewDataLock(path string) *DataLock {
	return &DataLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *DataLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *DataLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *DataLock) Path() string {
	return l.path
}
