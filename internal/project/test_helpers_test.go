package project

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/multibranch/internal/executor"
	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/internal/testing/mock"
)

// recordingExecutor persists through a real Local executor, counts calls
// and fails operations on request.
type recordingExecutor struct {
	*executor.Local

	mu     sync.Mutex
	calls  map[string][]string // op -> child names
	failOn map[string]error    // op/child -> error
}

func newRecordingExecutor(st *store.Store, clock Clock) *recordingExecutor {
	return &recordingExecutor{
		Local:  executor.NewLocal(st, clock.Now),
		calls:  make(map[string][]string),
		failOn: make(map[string]error),
	}
}

func (r *recordingExecutor) fail(op, child string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[op+"/"+child] = err
}

func (r *recordingExecutor) record(op, child string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[op+"/"+child]; ok {
		return err
	}
	r.calls[op] = append(r.calls[op], child)
	return nil
}

func (r *recordingExecutor) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[op])
}

func (r *recordingExecutor) names(op string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls[op]...)
}

func (r *recordingExecutor) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string][]string)
}

func (r *recordingExecutor) CreateChild(ctx context.Context, project, name, displayName string) (*job.Child, error) {
	if err := r.record(OpCreate, name); err != nil {
		return nil, err
	}
	return r.Local.CreateChild(ctx, project, name, displayName)
}

func (r *recordingExecutor) DeleteChild(ctx context.Context, child *job.Child) error {
	if err := r.record(OpDelete, child.Name); err != nil {
		return err
	}
	return r.Local.DeleteChild(ctx, child)
}

func (r *recordingExecutor) UpdateChildConfig(ctx context.Context, child *job.Child, cfg job.Config) error {
	if err := r.record(OpUpdate, child.Name); err != nil {
		return err
	}
	return r.Local.UpdateChildConfig(ctx, child, cfg)
}

func (r *recordingExecutor) SetEnabled(ctx context.Context, child *job.Child, enabled bool) error {
	op := OpDisable
	if enabled {
		op = OpEnable
	}
	if err := r.record(op, child.Name); err != nil {
		return err
	}
	return r.Local.SetEnabled(ctx, child, enabled)
}

func (r *recordingExecutor) ScheduleBuild(ctx context.Context, child *job.Child, cause job.Cause) error {
	if err := r.record(OpSchedule, child.Name); err != nil {
		return err
	}
	return r.Local.ScheduleBuild(ctx, child, cause)
}

// recordingNotifier captures topology notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	events [][]string
}

func (n *recordingNotifier) TopologyChanged(project string, children []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, append([]string{project}, children...))
}

func (n *recordingNotifier) last() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return nil
	}
	return n.events[len(n.events)-1]
}

type testEnv struct {
	store    *store.Store
	exec     *recordingExecutor
	notifier *recordingNotifier
	clock    *mock.Clock
	engine   *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, store.New(t.TempDir()))
}

// newTestEnvAt builds an environment on st. Two environments on the same
// directory behave like two processes sharing a state directory.
func newTestEnvAt(t *testing.T, st *store.Store) *testEnv {
	t.Helper()

	clock := mock.NewClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	exec := newRecordingExecutor(st, clock)
	notifier := &recordingNotifier{}

	return &testEnv{
		store:    st,
		exec:     exec,
		notifier: notifier,
		clock:    clock,
		engine: NewEngine(EngineOptions{
			Executor: exec,
			Store:    st,
			Notifier: notifier,
			Clock:    clock,
		}),
	}
}

func (env *testEnv) load(t *testing.T, name string, src scm.Source, retention RetentionPolicy) *Parent {
	t.Helper()

	spec := ParentSpec{
		Name:      name,
		Kind:      job.Freestyle{},
		Retention: retention,
		Settings:  Settings{FetchTimeout: time.Second},
	}
	if src != nil {
		spec.Source = src
	}
	p, err := env.engine.Load(context.Background(), spec)
	require.NoError(t, err)
	return p
}

func (env *testEnv) sync(t *testing.T, p *Parent) *Report {
	t.Helper()
	report, err := env.engine.Sync(context.Background(), p, SyncOptions{})
	require.NoError(t, err)
	return report
}

func childNames(p *Parent) []string {
	var names []string
	for _, c := range p.Children() {
		names = append(names, c.Name)
	}
	return names
}
