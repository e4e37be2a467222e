package reconciler

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/internal/events"
	"github.com/giantswarm/multibranch/internal/executor"
	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/internal/store"
)

type switchableSource struct {
	mu      sync.Mutex
	heads   []scm.BranchHead
	err     error
	release chan struct{}
	waiting atomic.Int32
}

func (s *switchableSource) ID() string { return "test" }

func (s *switchableSource) FetchBranchHeads(ctx context.Context) ([]scm.BranchHead, error) {
	s.mu.Lock()
	release := s.release
	heads, err := s.heads, s.err
	s.mu.Unlock()
	if release != nil {
		s.waiting.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return heads, err
}

func (s *switchableSource) BuildSourceBinding(head scm.BranchHead) job.SourceBinding {
	return job.SourceBinding{Type: "test", Branch: head.Name, Revision: head.Revision}
}

type reconcilerEnv struct {
	engine   *project.Engine
	store    *store.Store
	parent   *project.Parent
	source   *switchableSource
	recorder *events.Recorder
	metrics  *ReconcilerMetrics
	rec      *ProjectReconciler
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()

	st := store.New(t.TempDir())
	engine := project.NewEngine(project.EngineOptions{
		Executor: executor.NewLocal(st, time.Now),
		Store:    st,
	})
	kind, err := job.LookupKind("freestyle")
	require.NoError(t, err)

	src := &switchableSource{heads: []scm.BranchHead{{Name: "main", Revision: "a1"}, {Name: "feature/x", Revision: "b2"}}}
	parent, err := engine.Load(context.Background(), project.ParentSpec{
		Name:      "webapp",
		Kind:      kind,
		Source:    src,
		Retention: project.Immediate{},
		Settings:  project.Settings{FetchTimeout: time.Second},
	})
	require.NoError(t, err)

	recorder := events.NewRecorder(0)
	metrics := NewReconcilerMetrics()
	lookup := func(name string) (*project.Parent, bool) {
		if name == "webapp" {
			return parent, true
		}
		return nil, false
	}

	return &reconcilerEnv{
		engine:   engine,
		store:    st,
		parent:   parent,
		source:   src,
		recorder: recorder,
		metrics:  metrics,
		rec:      NewProjectReconciler(engine, lookup, events.NewEventGenerator(recorder), metrics),
	}
}

func TestProjectReconciler_Success(t *testing.T) {
	env := newReconcilerEnv(t)

	result := env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "webapp", Attempt: 1})
	require.NoError(t, result.Error)
	assert.Zero(t, result.RequeueAfter)

	names := make([]string, 0)
	for _, c := range env.parent.Children() {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"main", "feature%2Fx"}, names)

	pm, ok := env.metrics.GetProjectMetrics("webapp")
	require.True(t, ok)
	assert.Equal(t, int64(1), pm.Successes)
	assert.Equal(t, int64(2), pm.ChildrenCreated)

	evs := env.recorder.Events("webapp")
	require.NotEmpty(t, evs)
	assert.Equal(t, events.ReasonProjectSynced, evs[len(evs)-1].Reason)
}

func TestProjectReconciler_UnknownProject(t *testing.T) {
	env := newReconcilerEnv(t)

	result := env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "nope", Attempt: 1})
	assert.NoError(t, result.Error)
	_, ok := env.metrics.GetProjectMetrics("nope")
	assert.False(t, ok)
}

func TestProjectReconciler_FetchFailureIsRetried(t *testing.T) {
	env := newReconcilerEnv(t)
	env.source.err = errors.New("remote hung up")

	result := env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "webapp", Attempt: 1})
	require.Error(t, result.Error)
	assert.True(t, project.IsFetchError(result.Error))
	assert.Empty(t, env.parent.Children())

	pm, _ := env.metrics.GetProjectMetrics("webapp")
	assert.Equal(t, int64(1), pm.Failures)

	evs := env.recorder.Events("webapp")
	require.Len(t, evs, 1)
	assert.Equal(t, events.ReasonProjectSyncFailed, evs[0].Reason)
}

func TestProjectReconciler_CoalescesWithRunningPass(t *testing.T) {
	env := newReconcilerEnv(t)
	env.rec.coalesceDelay = 50 * time.Millisecond

	release := make(chan struct{})
	env.source.release = release

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = env.engine.Sync(context.Background(), env.parent, project.SyncOptions{})
	}()

	require.Eventually(t, func() bool { return env.source.waiting.Load() > 0 }, time.Second, 5*time.Millisecond)

	result := env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "webapp", Attempt: 1})
	assert.NoError(t, result.Error)
	assert.Equal(t, 50*time.Millisecond, result.RequeueAfter)

	close(release)
	<-done

	pm, _ := env.metrics.GetProjectMetrics("webapp")
	assert.Equal(t, int64(1), pm.Coalesced)
	assert.Len(t, env.parent.Children(), 2)
}

func TestProjectReconciler_TemplateEditedOnDisk(t *testing.T) {
	env := newReconcilerEnv(t)

	result := env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "webapp", Attempt: 1})
	require.NoError(t, result.Error)

	tmpl := env.parent.Template()
	tmpl.Description = "edited by hand"
	data, err := yaml.Marshal(tmpl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.engine.TemplatePath(env.parent), data, 0o644))

	result = env.rec.Reconcile(context.Background(), ReconcileRequest{Project: "webapp", Attempt: 1})
	require.NoError(t, result.Error)

	assert.Equal(t, "edited by hand", env.parent.Child("main").Config.Description)

	var reasons []events.EventReason
	for _, ev := range env.recorder.Events("webapp") {
		reasons = append(reasons, ev.Reason)
	}
	assert.Contains(t, reasons, events.ReasonTemplateUpdated)
	assert.Contains(t, reasons, events.ReasonChildUpdated)
}
