// Package executor is the job-execution collaborator of the reconciliation
// engine. The engine never touches child state directly; it asks the
// executor to create, configure, enable, disable, build and delete
// children.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/multibranch/internal/job"
)

// ErrChildDisabled is returned when a build is requested for a disabled child.
var ErrChildDisabled = errors.New("child is disabled")

// Executor manages the lifecycle of child jobs.
//
// Methods that take a *job.Child update it in place on success so that the
// caller's copy matches what was persisted.
type Executor interface {
	// CreateChild creates and persists an empty child.
	CreateChild(ctx context.Context, project, name, displayName string) (*job.Child, error)

	// DeleteChild removes a child and everything recorded for it.
	DeleteChild(ctx context.Context, child *job.Child) error

	// UpdateChildConfig replaces the configuration of a child.
	UpdateChildConfig(ctx context.Context, child *job.Child, cfg job.Config) error

	// SetEnabled enables or disables a child.
	SetEnabled(ctx context.Context, child *job.Child, enabled bool) error

	// ScheduleBuild queues a build of a child.
	ScheduleBuild(ctx context.Context, child *job.Child, cause job.Cause) error

	// LoadChildren returns every persisted child of project. Children that
	// cannot be read are reported as *LoadError values combined into the
	// returned error; the readable ones are still returned.
	LoadChildren(ctx context.Context, project string) ([]*job.Child, error)

	// Maintain drops queued work for children of project that are not in
	// children and no longer exist. It is called after topology changes;
	// an outdated children list never drops work of a live child.
	Maintain(project string, children []string)
}

// LoadError reports one child whose persisted state is unreadable.
type LoadError struct {
	Project string
	Name    string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("child %s/%s: unreadable configuration %s: %v", e.Project, e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
