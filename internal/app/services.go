package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/dependency"
	"github.com/giantswarm/multibranch/internal/events"
	"github.com/giantswarm/multibranch/internal/executor"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/reconciler"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/pkg/logging"
)

const (
	// eventHistory bounds the events kept in memory.
	eventHistory = 1000

	// loadConcurrency bounds how many projects are loaded or synced at once.
	loadConcurrency = 4
)

// Services holds all initialized services used by the application.
//
// Initialization order:
//  1. Store and executor
//  2. Topology and the dispatcher feeding it and the executor
//  3. Event sinks and the engine
//  4. Parents, loaded concurrently from the configured projects
//  5. The reconcile manager, which is only started by serve
type Services struct {
	Config config.Config

	Store      *store.Store
	Executor   *executor.Local
	Topology   *dependency.Topology
	Dispatcher *events.Dispatcher
	Recorder   *events.Recorder
	Events     *events.EventGenerator
	Engine     *project.Engine
	Metrics    *reconciler.ReconcilerMetrics
	Reconciler *reconciler.Manager

	mu      sync.RWMutex
	parents map[string]*project.Parent
}

// InitializeServices creates every service and loads the configured
// projects. A project whose children are partly unreadable is still loaded;
// any other load failure is fatal.
func InitializeServices(ctx context.Context, cfg config.Config) (*Services, error) {
	st := store.New(cfg.StateDir)
	exec := executor.NewLocal(st, time.Now)
	topology := dependency.NewTopology()
	dispatcher := events.NewDispatcher(topology, events.ListenerFunc(exec.Maintain))
	recorder := events.NewRecorder(eventHistory)
	generator := events.NewEventGenerator(events.LogSink{}, recorder)

	s := &Services{
		Config:     cfg,
		Store:      st,
		Executor:   exec,
		Topology:   topology,
		Dispatcher: dispatcher,
		Recorder:   recorder,
		Events:     generator,
		Engine: project.NewEngine(project.EngineOptions{
			Executor: exec,
			Store:    st,
			Notifier: dispatcher,
		}),
		Metrics: reconciler.NewReconcilerMetrics(),
		parents: make(map[string]*project.Parent),
	}

	if err := s.loadParents(ctx); err != nil {
		return nil, err
	}

	rc := cfg.Reconciler
	s.Reconciler = reconciler.NewManager(reconciler.ManagerConfig{
		WorkerCount:            rc.Workers,
		MaxRetries:             rc.MaxRetries,
		InitialBackoff:         rc.InitialBackoff,
		MaxBackoff:             rc.MaxBackoff,
		DebounceInterval:       rc.DebounceInterval,
		ReconcileTimeout:       rc.ReconcileTimeout,
		DisableFilesystemWatch: !rc.WatchEnabled(),
		Metrics:                s.Metrics,
	}, reconciler.NewProjectReconciler(s.Engine, s.Parent, generator, s.Metrics))

	for _, p := range s.Parents() {
		if err := s.Reconciler.AddProject(s.watch(p)); err != nil {
			logging.Warn("Services", "Change detection for %s is incomplete: %v", p.Name(), err)
		}
	}

	logging.Info("Services", "Initialized %d projects from %s", len(s.parents), cfg.StateDir)
	return s, nil
}

func (s *Services) loadParents(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(loadConcurrency)

	for _, pc := range s.Config.Projects {
		pc := pc.Effective(s.Config.Defaults)
		g.Go(func() error {
			spec, err := ParentSpec(pc)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("project %s: %w", pc.Name, err))
				mu.Unlock()
				return nil
			}

			parent, err := s.Engine.Load(ctx, spec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case parent == nil:
				errs = multierr.Append(errs, fmt.Errorf("failed to load project %s: %w", pc.Name, err))
			case err != nil:
				// Unreadable children are reported but do not stop the project.
				logging.Error("Services", err, "Project %s loaded with errors", pc.Name)
				fallthrough
			default:
				s.parents[pc.Name] = parent
				s.Topology.TopologyChanged(pc.Name, childNames(parent))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// watch describes the change triggers of p.
func (s *Services) watch(p *project.Parent) reconciler.ProjectWatch {
	w := reconciler.ProjectWatch{
		Name:     p.Name(),
		Interval: p.Settings().SyncInterval,
		Files:    []string{s.Engine.TemplatePath(p)},
	}
	if pc, ok := s.Config.Project(p.Name()); ok && pc.Source.HeadsFile != "" {
		w.Files = append(w.Files, pc.Source.HeadsFile)
	}
	return w
}

// Parent returns the loaded project with the given name.
func (s *Services) Parent(name string) (*project.Parent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[name]
	return p, ok
}

// Parents returns the loaded projects sorted by name.
func (s *Services) Parents() []*project.Parent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*project.Parent, 0, len(s.parents))
	for _, p := range s.parents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Lookup resolves names to parents. No names means every project.
func (s *Services) Lookup(names ...string) ([]*project.Parent, error) {
	if len(names) == 0 {
		return s.Parents(), nil
	}
	out := make([]*project.Parent, 0, len(names))
	for _, name := range names {
		p, ok := s.Parent(name)
		if !ok {
			return nil, fmt.Errorf("project %q is not configured", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// SyncProjects runs one pass per parent concurrently and returns the
// reports in the order of parents. Aborted passes still return a report;
// their errors are combined.
func (s *Services) SyncProjects(ctx context.Context, parents []*project.Parent, opts project.SyncOptions) ([]*project.Report, error) {
	reports := make([]*project.Report, len(parents))
	errs := make([]error, len(parents))

	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i, p := range parents {
		g.Go(func() error {
			report, err := s.Engine.Sync(ctx, p, opts)
			reports[i], errs[i] = report, err
			s.Events.PassEvents(report)
			return nil
		})
	}
	_ = g.Wait()
	return reports, multierr.Combine(errs...)
}

// SetDisabled disables or enables a project and its children.
func (s *Services) SetDisabled(ctx context.Context, p *project.Parent, disabled bool) error {
	if err := s.Engine.SetDisabled(ctx, p, disabled); err != nil {
		return err
	}
	reason := events.ReasonProjectEnabled
	if disabled {
		reason = events.ReasonProjectDisabled
	}
	s.Events.ProjectEvent(p.Name(), reason, events.EventData{})
	return nil
}

// UpdateTemplate replaces the template of p with data.
func (s *Services) UpdateTemplate(ctx context.Context, p *project.Parent, data []byte) error {
	if err := s.Engine.UpdateTemplate(ctx, p, data); err != nil {
		return err
	}
	s.Events.ProjectEvent(p.Name(), events.ReasonTemplateUpdated, events.EventData{})
	return nil
}

// DeleteChild removes one child of p.
func (s *Services) DeleteChild(ctx context.Context, p *project.Parent, name string) error {
	child := p.Child(name)
	if child == nil {
		return fmt.Errorf("project %s has no child %q", p.Name(), name)
	}
	if err := s.Engine.DeleteChild(ctx, p, name); err != nil {
		return err
	}
	s.Events.ChildEvent(p.Name(), name, events.ReasonChildDeleted, events.EventData{Branch: child.DisplayName})
	return nil
}

// DeleteProject removes p with all children and state and forgets it.
func (s *Services) DeleteProject(ctx context.Context, p *project.Parent) error {
	count := len(p.Children())
	if err := s.Engine.DeleteParent(ctx, p); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.parents, p.Name())
	s.mu.Unlock()

	s.Reconciler.RemoveProject(p.Name())
	s.Dispatcher.Wait()
	s.Topology.RemoveProject(p.Name())
	s.Events.ProjectEvent(p.Name(), events.ReasonProjectDeleted, events.EventData{Count: count})
	return nil
}

// Close stops background work and waits for pending notifications.
func (s *Services) Close() error {
	var err error
	if s.Reconciler != nil && s.Reconciler.IsRunning() {
		err = s.Reconciler.Stop()
	}
	s.Dispatcher.Wait()
	return err
}

func childNames(p *project.Parent) []string {
	children := p.Children()
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	return names
}
