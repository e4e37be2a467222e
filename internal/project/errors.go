package project

import (
	"errors"
	"fmt"
)

// ErrParentDisabled is returned when an operation requires an enabled parent.
var ErrParentDisabled = errors.New("project is disabled")

// ErrChildNotFound is returned for operations on unknown children.
var ErrChildNotFound = errors.New("child not found")

// FetchError aborts a pass: the source could not report its branches.
// Nothing was changed; the next scheduled pass retries.
type FetchError struct {
	Project string
	Source  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("project %s: failed to fetch branch heads from %s: %v", e.Project, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Child operations reported by ChildError.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpEnable   = "enable"
	OpDisable  = "disable"
	OpSchedule = "schedule"
)

// ChildError is a failure isolated to one child.
type ChildError struct {
	Project string
	Child   string
	Op      string
	Err     error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("project %s: failed to %s child %s: %v", e.Project, e.Op, e.Child, e.Err)
}

func (e *ChildError) Unwrap() error { return e.Err }

// ConfigCorruptionError reports persisted configuration that cannot be read.
// For the template it is logged and defaults are used instead; for children
// it is returned to the caller of Load.
type ConfigCorruptionError struct {
	Project string
	Path    string
	Err     error
}

func (e *ConfigCorruptionError) Error() string {
	return fmt.Sprintf("project %s: corrupt configuration %s: %v", e.Project, e.Path, e.Err)
}

func (e *ConfigCorruptionError) Unwrap() error { return e.Err }

// ConcurrencyError is returned by non-blocking operations when a pass or a
// cascade already holds the project.
type ConcurrencyError struct {
	Project string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("project %s: a synchronization or cascade is already in progress", e.Project)
}

// IsConcurrencyError reports whether err is a *ConcurrencyError.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// IsFetchError reports whether err is a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
