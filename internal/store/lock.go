package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// LocksDirName holds one lock file per project, next to the project
// directories. RemoveProject leaves the lock file in place.
const LocksDirName = ".locks"

// lockRetryDelay is how often a blocked LockProject retries.
const lockRetryDelay = 50 * time.Millisecond

// ProjectLock is a held lock on one project. Locks are advisory and
// exclude every other holder, in this process or another one, that goes
// through LockProject or TryLockProject on the same state directory.
type ProjectLock struct {
	project string
	fl      *flock.Flock
}

// Unlock releases the lock.
func (l *ProjectLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock project %s: %w", l.project, err)
	}
	return nil
}

// LockPath returns the lock file of project.
func (s *Store) LockPath(project string) string {
	return filepath.Join(s.root, LocksDirName, project+".lock")
}

// LockProject blocks until it holds the lock of project or ctx ends.
func (s *Store) LockProject(ctx context.Context, project string) (*ProjectLock, error) {
	fl, err := s.newFlock(project)
	if err != nil {
		return nil, err
	}

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock project %s: %w", project, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock project %s: %w", project, context.Cause(ctx))
	}

	logging.Debug("Store", "Locked %s", fl.Path())
	return &ProjectLock{project: project, fl: fl}, nil
}

// TryLockProject takes the lock of project if it is free. It returns
// false without an error when another holder has it.
func (s *Store) TryLockProject(project string) (*ProjectLock, bool, error) {
	fl, err := s.newFlock(project)
	if err != nil {
		return nil, false, err
	}

	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock project %s: %w", project, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &ProjectLock{project: project, fl: fl}, true, nil
}

func (s *Store) newFlock(project string) (*flock.Flock, error) {
	if err := validateName(project); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, LocksDirName)
	if err := os.MkdirAll(dir, directoryPerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return flock.New(s.LockPath(project)), nil
}
