package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// BuildRequest is one queued build.
type BuildRequest struct {
	ID          string    `yaml:"id"`
	Project     string    `yaml:"project"`
	Child       string    `yaml:"child"`
	Cause       job.Cause `yaml:"cause"`
	RequestedAt time.Time `yaml:"requestedAt"`
}

// Local keeps children in a store and queues builds in memory, mirrored to
// each child's builds file.
type Local struct {
	store *store.Store
	now   func() time.Time

	mu     sync.Mutex
	builds map[string][]BuildRequest // key: project/child
}

var _ Executor = (*Local)(nil)

// NewLocal creates an executor backed by st. now may be nil.
func NewLocal(st *store.Store, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		store:  st,
		now:    now,
		builds: make(map[string][]BuildRequest),
	}
}

func buildKey(project, child string) string {
	return project + "/" + child
}

func (l *Local) CreateChild(ctx context.Context, project, name, displayName string) (*job.Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	child := &job.Child{
		Name:        name,
		DisplayName: displayName,
		Parent:      project,
		Config:      job.Config{Source: job.NoSource()},
	}
	if err := l.store.WriteBranch(project, name, store.ConfigFile, child); err != nil {
		return nil, fmt.Errorf("failed to create child %s: %w", name, err)
	}

	logging.Debug("Executor", "Created child %s/%s", project, name)
	return child, nil
}

func (l *Local) DeleteChild(ctx context.Context, child *job.Child) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.store.RemoveBranch(child.Parent, child.Name); err != nil {
		return fmt.Errorf("failed to delete child %s: %w", child.Name, err)
	}

	l.mu.Lock()
	delete(l.builds, buildKey(child.Parent, child.Name))
	l.mu.Unlock()

	logging.Debug("Executor", "Deleted child %s/%s", child.Parent, child.Name)
	return nil
}

func (l *Local) UpdateChildConfig(ctx context.Context, child *job.Child, cfg job.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	updated := child.Clone()
	updated.Config = cfg.Clone()
	if err := l.store.WriteBranch(child.Parent, child.Name, store.ConfigFile, updated); err != nil {
		return fmt.Errorf("failed to update child %s: %w", child.Name, err)
	}

	*child = *updated
	return nil
}

func (l *Local) SetEnabled(ctx context.Context, child *job.Child, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	updated := child.Clone()
	updated.Disabled = !enabled
	updated.Config.Disabled = !enabled
	if err := l.store.WriteBranch(child.Parent, child.Name, store.ConfigFile, updated); err != nil {
		return fmt.Errorf("failed to set enabled=%t on child %s: %w", enabled, child.Name, err)
	}

	*child = *updated
	return nil
}

func (l *Local) ScheduleBuild(ctx context.Context, child *job.Child, cause job.Cause) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if child.Disabled {
		return fmt.Errorf("cannot build %s: %w", child.Name, ErrChildDisabled)
	}

	req := BuildRequest{
		ID:          uuid.NewString(),
		Project:     child.Parent,
		Child:       child.Name,
		Cause:       cause,
		RequestedAt: l.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := buildKey(child.Parent, child.Name)
	pending := append(slices.Clone(l.builds[key]), req)
	if err := l.store.WriteBranch(child.Parent, child.Name, store.BuildsFile, pending); err != nil {
		return fmt.Errorf("failed to queue build of %s: %w", child.Name, err)
	}
	l.builds[key] = pending

	logging.Info("Executor", "Scheduled build %s of %s/%s (%s)", req.ID, child.Parent, child.Name, cause.Reason)
	return nil
}

// LoadChildren also replaces the queued builds of project with the
// persisted ones, so builds of children removed on disk are forgotten.
func (l *Local) LoadChildren(ctx context.Context, project string) ([]*job.Child, error) {
	names, err := l.store.ListBranches(project)
	if err != nil {
		return nil, err
	}

	var (
		children []*job.Child
		errs     error
	)
	builds := make(map[string][]BuildRequest)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		child := &job.Child{}
		if err := l.store.ReadBranch(project, name, store.ConfigFile, child); err != nil {
			errs = multierr.Append(errs, &LoadError{
				Project: project,
				Name:    name,
				Path:    filepath.Join(l.store.BranchDir(project, name), store.ConfigFile),
				Err:     err,
			})
			continue
		}
		// The directory name is authoritative.
		child.Name = name
		child.Parent = project
		children = append(children, child)

		var pending []BuildRequest
		switch err := l.store.ReadBranch(project, name, store.BuildsFile, &pending); {
		case err == nil:
			if len(pending) > 0 {
				builds[buildKey(project, name)] = pending
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			logging.Warn("Executor", "Ignoring unreadable build queue of %s/%s: %v", project, name, err)
		}
	}

	prefix := project + "/"
	l.mu.Lock()
	for key := range l.builds {
		if strings.HasPrefix(key, prefix) {
			delete(l.builds, key)
		}
	}
	maps.Copy(l.builds, builds)
	l.mu.Unlock()

	return children, errs
}

func (l *Local) Maintain(project string, children []string) {
	live := make(map[string]bool, len(children))
	for _, name := range children {
		live[buildKey(project, name)] = true
	}

	prefix := project + "/"
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, pending := range l.builds {
		if !strings.HasPrefix(key, prefix) || live[key] {
			continue
		}
		if l.store.HasBranch(project, strings.TrimPrefix(key, prefix)) {
			continue
		}
		delete(l.builds, key)
		logging.Debug("Executor", "Dropped %d queued builds of removed child %s", len(pending), key)
	}
}

// PendingBuilds returns the queued builds of one child.
func (l *Local) PendingBuilds(project, child string) []BuildRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.builds[buildKey(project, child)])
}
