package subtitle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"wordsync/internal/textutil"
)

// ErrProjectLocked is returned when another process holds the project lock.
var ErrProjectLocked = errors.New("project is locked by another process")

const lockRetryDelay = 250 * time.Millisecond

// ProjectLock is an advisory file lock guarding one project's batch.
type ProjectLock struct {
	lock *flock.Flock
	path string
}

// LockProject acquires the lock for projectID under dir, waiting until ctx is
// done. A context without deadline fails fast when the lock is held.
func LockProject(ctx context.Context, dir, projectID string) (*ProjectLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("project-%s.lock", textutil.FileToken(projectID)))
	lock := flock.New(path)

	var (
		ok  bool
		err error
	)
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		ok, err = lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = lock.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectLocked, projectID)
	}
	return &ProjectLock{lock: lock, path: path}, nil
}

// Path returns the lock file location.
func (l *ProjectLock) Path() string {
	return l.path
}

// Unlock releases the lock. Safe on nil.
func (l *ProjectLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
