package reconciler

import (
	"context"
	"time"
)

// ChangeEvent represents a detected reason to synchronize a project.
type ChangeEvent struct {
	// Project is the name of the project to synchronize.
	Project string

	// Operation describes what kind of change occurred.
	Operation ChangeOperation

	// Timestamp is when the change was detected.
	Timestamp time.Time

	// Source indicates where the change came from.
	Source ChangeSource

	// FilePath is the path to the file that changed (filesystem source only).
	FilePath string
}

// ChangeOperation represents the type of change detected.
type ChangeOperation string

const (
	// OperationCreate indicates a watched file was created.
	OperationCreate ChangeOperation = "Create"

	// OperationUpdate indicates a watched file was modified, or a periodic
	// or manual trigger fired.
	OperationUpdate ChangeOperation = "Update"

	// OperationDelete indicates a watched file was deleted.
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource indicates where a change originated.
type ChangeSource string

const (
	// SourceFilesystem indicates the change came from filesystem watching.
	SourceFilesystem ChangeSource = "Filesystem"

	// SourceInterval indicates the periodic sync timer fired.
	SourceInterval ChangeSource = "Interval"

	// SourceManual indicates the change was triggered manually.
	SourceManual ChangeSource = "Manual"
)

// ReconcileResult represents the outcome of a reconciliation attempt.
type ReconcileResult struct {
	// Requeue indicates whether the project should be requeued.
	Requeue bool

	// RequeueAfter specifies when to requeue (0 means use the initial backoff).
	RequeueAfter time.Duration

	// Error is any error that occurred during reconciliation. Errors are
	// retried with exponential backoff.
	Error error
}

// ReconcileRequest represents a request to synchronize one project.
type ReconcileRequest struct {
	// Project is the name of the project.
	Project string

	// Attempt is the current retry attempt number (starts at 1).
	Attempt int

	// LastError is the error from the previous attempt, if any.
	LastError error
}

// Reconciler runs one synchronization of a project. It must be idempotent.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult
}

// ReconcilerFunc adapts a function to Reconciler.
type ReconcilerFunc func(ctx context.Context, req ReconcileRequest) ReconcileResult

// Reconcile implements Reconciler.
func (f ReconcilerFunc) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	return f(ctx, req)
}

// ProjectWatch describes what a detector should watch for one project.
type ProjectWatch struct {
	// Name is the project name.
	Name string

	// Interval is the periodic sync interval. Zero disables periodic sync.
	Interval time.Duration

	// Dirs are directories whose content changes trigger a sync, such as
	// the project's template directory.
	Dirs []string

	// Files are individual files whose changes trigger a sync, such as a
	// branch heads file.
	Files []string
}

// ChangeDetector is the interface for components that produce change events.
type ChangeDetector interface {
	// Start begins watching. Events are sent to changes.
	Start(ctx context.Context, changes chan<- ChangeEvent) error

	// Stop gracefully stops the detector.
	Stop() error

	// GetSource returns the source type this detector reports.
	GetSource() ChangeSource

	// AddProject starts watching a project. Adding a project again replaces
	// its previous watch.
	AddProject(w ProjectWatch) error

	// RemoveProject stops watching a project.
	RemoveProject(name string) error
}

// ReconcileQueue represents a queue of projects awaiting synchronization.
type ReconcileQueue interface {
	// Add adds a request to the queue.
	// If the same project is already queued, the existing entry is updated.
	// If it is being processed, exactly one re-run is scheduled after Done.
	Add(req ReconcileRequest)

	// Get retrieves the next request from the queue.
	// Blocks until a request is available or the context is cancelled.
	Get(ctx context.Context) (ReconcileRequest, bool)

	// Done marks a request as processed.
	Done(req ReconcileRequest)

	// Len returns the current queue length.
	Len() int

	// Shutdown signals the queue to stop accepting new items.
	Shutdown()
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// WorkerCount is the number of concurrent synchronization workers.
	// Defaults to 2 if not specified.
	WorkerCount int

	// MaxRetries is the maximum number of retry attempts for failed passes.
	// Defaults to 5 if not specified.
	MaxRetries int

	// InitialBackoff is the initial backoff duration for retries.
	// Defaults to 1 second if not specified.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration for retries.
	// Defaults to 5 minutes if not specified.
	MaxBackoff time.Duration

	// DebounceInterval is how long the filesystem detector waits for
	// additional changes. Defaults to 500ms if not specified.
	DebounceInterval time.Duration

	// ReconcileTimeout bounds a single pass. Defaults to 5 minutes.
	ReconcileTimeout time.Duration

	// DisableFilesystemWatch turns off the filesystem detector.
	DisableFilesystemWatch bool

	// Metrics is shared with the reconciler. A new instance is used when nil.
	Metrics *ReconcilerMetrics
}

// ReconcileStatus represents the synchronization status of a project.
type ReconcileStatus struct {
	// Project is the name of the project.
	Project string

	// LastReconcileTime is when the project was last successfully synchronized.
	LastReconcileTime *time.Time

	// LastError is the most recent error, if any.
	LastError string

	// RetryCount is the number of retry attempts.
	RetryCount int

	// State describes the current reconciliation state.
	State ReconcileState
}

// ReconcileState represents the state of a project's synchronization.
type ReconcileState string

const (
	// StatePending means the project is awaiting a pass.
	StatePending ReconcileState = "Pending"

	// StateReconciling means a pass is in progress.
	StateReconciling ReconcileState = "Reconciling"

	// StateSynced means the last pass succeeded.
	StateSynced ReconcileState = "Synced"

	// StateError means the last pass failed and will be retried.
	StateError ReconcileState = "Error"

	// StateFailed means the pass failed MaxRetries times. The next trigger
	// starts over.
	StateFailed ReconcileState = "Failed"
)
