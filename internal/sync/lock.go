package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/s3rsync/s3rsync/internal/utils"
)

const lockDirName = ".s3rsync"

// ProcessLock is a cross-process, non-blocking exclusive mutex guarding one
// (bucket, prefix) target. Alternate backends (e.g. a lease object in the
// blob store) can substitute the default filesystem lock.
type ProcessLock interface {
	// TryAcquire attempts to take the lock without blocking. false means
	// another process currently holds it.
	TryAcquire() (bool, error)

	// Release gives the lock back. It is idempotent and safe to call even
	// if acquisition failed or never happened.
	Release() error
}

// FlockLock implements ProcessLock with an exclusive flock on a token file
// derived deterministically from (bucket, prefix). Two invocations targeting
// the same bucket and prefix contend; different targets run concurrently.
type FlockLock struct {
	flock *flock.Flock
}

func NewFlockLock(bucket, prefix string) (*FlockLock, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve home directory: %w", err)
	}

	lockDir := filepath.Join(home, lockDirName)
	if err := utils.EnsureDir(lockDir); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", lockDir, err)
	}

	return NewFlockLockAt(filepath.Join(lockDir, LockToken(bucket, prefix))), nil
}

// NewFlockLockAt creates a lock on an explicit token file path.
func NewFlockLockAt(path string) *FlockLock {
	return &FlockLock{flock: flock.New(path)}
}

func (l *FlockLock) TryAcquire() (bool, error) {
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}
	return locked, nil
}

func (l *FlockLock) Release() error {
	// releasing a lock this process never took is a no-op
	if !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}

// LockToken derives the lock file name for a (bucket, prefix) target.
func LockToken(bucket, prefix string) string {
	prefix = strings.Trim(prefix, "/")
	return fmt.Sprintf("%s_%s.lock", bucket, strings.ReplaceAll(prefix, "/", "_"))
}

var _ ProcessLock = (*FlockLock)(nil)
