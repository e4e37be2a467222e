package reconciler

import (
	"context"
	"time"

	"github.com/giantswarm/multibranch/internal/events"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// DefaultCoalesceDelay is how long a trigger waits when it finds a pass of
// the same project already running.
const DefaultCoalesceDelay = 2 * time.Second

// ParentLookup resolves a project name to its loaded parent.
type ParentLookup func(name string) (*project.Parent, bool)

// ProjectReconciler runs synchronization passes through the engine.
type ProjectReconciler struct {
	engine        *project.Engine
	lookup        ParentLookup
	events        *events.EventGenerator
	metrics       *ReconcilerMetrics
	coalesceDelay time.Duration
}

// NewProjectReconciler creates a reconciler. generator and metrics may be nil.
func NewProjectReconciler(engine *project.Engine, lookup ParentLookup, generator *events.EventGenerator, metrics *ReconcilerMetrics) *ProjectReconciler {
	if metrics == nil {
		metrics = NewReconcilerMetrics()
	}
	return &ProjectReconciler{
		engine:        engine,
		lookup:        lookup,
		events:        generator,
		metrics:       metrics,
		coalesceDelay: DefaultCoalesceDelay,
	}
}

// Reconcile runs one pass, reloading the template from disk first. A pass
// that is already running is not waited for; the request is retried after
// the coalesce delay. Fetch failures are returned as errors and retried
// with backoff.
func (r *ProjectReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	parent, ok := r.lookup(req.Project)
	if !ok {
		logging.Debug("ProjectReconciler", "Project %s is not loaded, skipping", req.Project)
		return ReconcileResult{}
	}

	r.metrics.RecordAttempt(req.Project)

	report, err := r.engine.TrySync(ctx, parent, project.SyncOptions{})
	if project.IsConcurrencyError(err) {
		logging.Debug("ProjectReconciler", "Pass of %s already running, retrying in %v", req.Project, r.coalesceDelay)
		r.metrics.RecordCoalesced(req.Project)
		return ReconcileResult{RequeueAfter: r.coalesceDelay}
	}

	if r.events != nil {
		if report != nil && report.TemplateReloaded {
			r.events.ProjectEvent(req.Project, events.ReasonTemplateUpdated, events.EventData{})
		}
		r.events.PassEvents(report)
	}

	if err != nil {
		r.metrics.RecordFailure(req.Project, err.Error())
		return ReconcileResult{Error: err}
	}

	r.metrics.RecordSuccess(req.Project, report.Duration(),
		report.Count(project.ActionCreated), report.Count(project.ActionDeleted), report.Count(project.ActionFailed))
	return ReconcileResult{}
}
