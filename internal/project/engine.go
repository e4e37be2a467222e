package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/multibranch/internal/executor"
	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/naming"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// Notifier is told about topology changes after a pass. Implementations
// must not block.
type Notifier interface {
	TopologyChanged(project string, children []string)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type nopNotifier struct{}

func (nopNotifier) TopologyChanged(string, []string) {}

// EngineOptions are the collaborators of an Engine. Executor and Store are
// required.
type EngineOptions struct {
	Executor executor.Executor
	Store    *store.Store
	Notifier Notifier
	Clock    Clock
}

// Engine runs synchronization passes and cascades against parents. It holds
// no per-parent state; any number of parents may be driven concurrently.
type Engine struct {
	exec     executor.Executor
	store    *store.Store
	notifier Notifier
	clock    Clock
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Executor == nil {
		panic("project: EngineOptions.Executor is required")
	}
	if opts.Store == nil {
		panic("project: EngineOptions.Store is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Engine{
		exec:     opts.Executor,
		store:    opts.Store,
		notifier: opts.Notifier,
		clock:    opts.Clock,
	}
}

// SyncOptions modify a single pass.
type SyncOptions struct {
	// EnableDisabled re-enables children that were disabled before the pass.
	// Without it a disabled child stays disabled.
	EnableDisabled bool
}

// Sync runs one synchronization pass, waiting for any pass or cascade
// already running on p in this or another process. The returned error is
// a *FetchError when the source failed; per-child failures are only
// reported in the Report.
func (e *Engine) Sync(ctx context.Context, p *Parent, opts SyncOptions) (*Report, error) {
	unlock, err := e.lock(ctx, p)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.pass(ctx, p, opts)
}

// TrySync runs a pass only if p is idle, returning a *ConcurrencyError
// otherwise.
func (e *Engine) TrySync(ctx context.Context, p *Parent, opts SyncOptions) (*Report, error) {
	unlock, err := e.tryLock(p)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.pass(ctx, p, opts)
}

// pass implements one synchronization. Callers hold both locks of p. The
// pass starts from the stored state, so edits made by other processes
// since the last pass are kept.
func (e *Engine) pass(ctx context.Context, p *Parent, opts SyncOptions) (*Report, error) {
	report := newReport(p.name, e.clock.Now())
	defer e.finish(p, report)

	changed, corrupt, err := e.refresh(ctx, p)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	report.TemplateReloaded = changed
	if corrupt != nil {
		logging.Warn("Engine", "Project %s has unreadable children: %v", p.name, corrupt)
	}

	if p.disabled.Load() {
		report.Skipped = "Project disabled."
		return report, nil
	}

	src := p.Source()
	if src == nil {
		e.removeAll(ctx, p, report)
		e.saveState(p)
		e.notify(p)
		return report, nil
	}
	report.Source = src.ID()

	heads, err := e.fetch(ctx, p, src)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	report.Heads = len(heads)

	live := make(map[string]scm.BranchHead, len(heads))
	for _, head := range heads {
		live[naming.Encode(head.Name)] = head
	}

	created := e.addMissing(ctx, p, heads, report)
	e.removeStale(ctx, p, live, report)
	configured := e.propagate(ctx, p, src, heads, created, opts, report)
	e.scheduleNew(ctx, p, heads, created, configured, report)

	e.saveState(p)
	e.notify(p)
	return report, nil
}

func (e *Engine) fetch(ctx context.Context, p *Parent, src scm.Source) ([]scm.BranchHead, error) {
	timeout := p.settings.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	heads, err := src.FetchBranchHeads(fetchCtx)
	if err != nil {
		return nil, &FetchError{Project: p.name, Source: src.ID(), Err: err}
	}
	return scm.Normalize(heads), nil
}

// removeAll deletes every child; a parent without a source has no branches.
func (e *Engine) removeAll(ctx context.Context, p *Parent, report *Report) {
	for _, child := range p.children.List() {
		if err := e.exec.DeleteChild(ctx, child); err != nil {
			e.childFailed(p, report, child.Name, child.DisplayName, OpDelete, err)
			continue
		}
		p.children.Remove(child.Name)
		p.clearOrphan(child.Name)
		report.add(child.Name, child.DisplayName, ActionDeleted, "no source configured")
	}
}

// addMissing creates a child for every head without one and returns the
// names of the created children.
func (e *Engine) addMissing(ctx context.Context, p *Parent, heads []scm.BranchHead, report *Report) map[string]bool {
	created := make(map[string]bool)
	for _, head := range heads {
		name := naming.Encode(head.Name)
		if p.children.Has(name) {
			continue
		}

		child, err := e.exec.CreateChild(ctx, p.name, name, head.Name)
		if err != nil {
			e.childFailed(p, report, name, head.Name, OpCreate, err)
			continue
		}
		p.children.Put(child)
		created[name] = true
		report.add(name, head.Name, ActionCreated, "")
	}
	return created
}

// removeStale asks the retention policy about every child without a head.
// An empty head list makes every child a candidate.
func (e *Engine) removeStale(ctx context.Context, p *Parent, live map[string]scm.BranchHead, report *Report) {
	now := e.clock.Now()
	for _, child := range p.children.List() {
		if _, ok := live[child.Name]; ok {
			continue
		}

		rec, ok := p.orphan(child.Name)
		if !ok {
			rec = OrphanRecord{Since: now}
		}
		rec.MissedPasses++

		if !p.retention.ShouldDelete(rec, now) {
			p.setOrphan(child.Name, rec)
			report.add(child.Name, child.DisplayName, ActionRetained,
				fmt.Sprintf("orphaned since %s, missed %d passes", rec.Since.Format(time.RFC3339), rec.MissedPasses))
			continue
		}

		if err := e.exec.DeleteChild(ctx, child); err != nil {
			p.setOrphan(child.Name, rec)
			e.childFailed(p, report, child.Name, child.DisplayName, OpDelete, err)
			continue
		}
		p.children.Remove(child.Name)
		p.clearOrphan(child.Name)
		report.add(child.Name, child.DisplayName, ActionDeleted, "branch no longer exists")
	}
}

// propagate copies the template into every child that has a head and
// returns the names of the children that were configured successfully.
func (e *Engine) propagate(ctx context.Context, p *Parent, src scm.Source, heads []scm.BranchHead, created map[string]bool, opts SyncOptions, report *Report) map[string]bool {
	tmpl := p.template.Get()
	configured := make(map[string]bool)

	for _, head := range heads {
		name := naming.Encode(head.Name)
		child := p.children.Get(name)
		if child == nil {
			// Creation failed earlier in this pass.
			continue
		}
		if p.clearOrphan(name) {
			logging.Info("Engine", "Branch %s of %s is back", head.Name, p.name)
		}

		wasDisabled := child.Disabled
		before := child.Config

		cfg, err := p.kind.ConfigureFromTemplate(tmpl, child, src.BuildSourceBinding(head))
		if err != nil {
			e.childFailed(p, report, name, head.Name, OpUpdate, err)
			continue
		}

		changed := created[name] || !before.Equal(cfg)
		if changed {
			if err := e.exec.UpdateChildConfig(ctx, child, cfg); err != nil {
				e.childFailed(p, report, name, head.Name, OpUpdate, err)
				continue
			}
			p.children.Put(child)
		}

		if wasDisabled && opts.EnableDisabled {
			if err := e.exec.SetEnabled(ctx, child, true); err != nil {
				e.childFailed(p, report, name, head.Name, OpEnable, err)
				continue
			}
			p.children.Put(child)
			changed = true
		}

		configured[name] = true
		if created[name] {
			continue
		}
		if changed {
			report.add(name, head.Name, ActionUpdated, "")
		} else {
			report.add(name, head.Name, ActionUnchanged, "")
		}
	}
	return configured
}

// scheduleNew builds the children created in this pass.
func (e *Engine) scheduleNew(ctx context.Context, p *Parent, heads []scm.BranchHead, created, configured map[string]bool, report *Report) {
	for _, head := range heads {
		name := naming.Encode(head.Name)
		if !created[name] {
			continue
		}
		if p.settings.SuppressNewBranchBuilds {
			report.add(name, head.Name, ActionSkipped, "build of new branches suppressed")
			continue
		}
		if !configured[name] {
			continue
		}

		child := p.children.Get(name)
		if child == nil || child.Disabled {
			continue
		}
		cause := job.Cause{Reason: job.CauseBranchIndexing, Revision: head.Revision}
		if err := e.exec.ScheduleBuild(ctx, child, cause); err != nil {
			e.childFailed(p, report, name, head.Name, OpSchedule, err)
			continue
		}
		report.add(name, head.Name, ActionScheduled, head.Revision)
	}
}

func (e *Engine) childFailed(p *Parent, report *Report, name, branch, op string, err error) {
	cerr := &ChildError{Project: p.name, Child: name, Op: op, Err: err}
	logging.Error("Engine", cerr, "Failed to %s child %s of %s", op, name, p.name)
	report.fail(name, branch, cerr)
}

// saveState persists orphan records and the disabled state. A failure is
// logged; the next successful save catches up.
func (e *Engine) saveState(p *Parent) {
	if err := e.store.WriteState(p.name, p.state()); err != nil {
		logging.Error("Engine", err, "Failed to persist state of %s", p.name)
	}
}

func (e *Engine) notify(p *Parent) {
	e.notifier.TopologyChanged(p.name, p.children.Names())
}

// finish stamps the report, keeps it on the parent, appends it to the sync
// log and logs a summary.
func (e *Engine) finish(p *Parent, report *Report) {
	report.FinishedAt = e.clock.Now()
	p.setLastReport(report)

	if err := e.store.AppendLog(p.name, report); err != nil {
		logging.Warn("Engine", "Failed to append sync log of %s: %v", p.name, err)
	}

	attrs := []slog.Attr{
		slog.String("pass", report.ID),
		slog.String("project", report.Project),
		slog.Int("heads", report.Heads),
		slog.Int("created", report.Count(ActionCreated)),
		slog.Int("updated", report.Count(ActionUpdated)),
		slog.Int("deleted", report.Count(ActionDeleted)),
		slog.Int("retained", report.Count(ActionRetained)),
		slog.Int("scheduled", report.Count(ActionScheduled)),
		slog.Int("failed", report.Count(ActionFailed)),
		slog.Duration("duration", report.Duration()),
	}

	switch {
	case report.Skipped != "":
		logging.Record(logging.LevelInfo, "Engine", nil, "Synchronization skipped: "+report.Skipped, attrs...)
	case report.Error != "":
		logging.Record(logging.LevelError, "Engine", errors.New(report.Error), "Synchronization aborted", attrs...)
	case report.Failed():
		logging.Record(logging.LevelWarn, "Engine", nil, "Synchronization finished with failures", attrs...)
	default:
		logging.Record(logging.LevelInfo, "Engine", nil, "Synchronization finished", attrs...)
	}
}
