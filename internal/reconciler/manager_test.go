package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestManager(config ManagerConfig, r Reconciler) *Manager {
	config.DisableFilesystemWatch = true
	if config.WorkerCount == 0 {
		config.WorkerCount = 1
	}
	return NewManager(config, r)
}

func TestManager_Defaults(t *testing.T) {
	manager := NewManager(ManagerConfig{}, nil)

	if manager.config.WorkerCount != 2 {
		t.Errorf("default WorkerCount = %d, want 2", manager.config.WorkerCount)
	}
	if manager.config.MaxRetries != 5 {
		t.Errorf("default MaxRetries = %d, want 5", manager.config.MaxRetries)
	}
	if manager.config.InitialBackoff != time.Second {
		t.Errorf("default InitialBackoff = %v, want 1s", manager.config.InitialBackoff)
	}
	if manager.config.MaxBackoff != 5*time.Minute {
		t.Errorf("default MaxBackoff = %v, want 5m", manager.config.MaxBackoff)
	}
	if manager.config.DebounceInterval != 500*time.Millisecond {
		t.Errorf("default DebounceInterval = %v, want 500ms", manager.config.DebounceInterval)
	}
	if manager.config.ReconcileTimeout != 5*time.Minute {
		t.Errorf("default ReconcileTimeout = %v, want 5m", manager.config.ReconcileTimeout)
	}
	if len(manager.detectors) != 2 {
		t.Errorf("expected interval and filesystem detectors, got %d", len(manager.detectors))
	}

	custom := NewManager(ManagerConfig{ReconcileTimeout: time.Minute, DisableFilesystemWatch: true}, nil)
	if custom.config.ReconcileTimeout != time.Minute {
		t.Errorf("ReconcileTimeout = %v, want 1m", custom.config.ReconcileTimeout)
	}
	if len(custom.detectors) != 1 {
		t.Errorf("expected only the interval detector, got %d", len(custom.detectors))
	}
}

func TestManager_AddProjectRequiresName(t *testing.T) {
	manager := newTestManager(ManagerConfig{}, nil)
	if err := manager.AddProject(ProjectWatch{}); err == nil {
		t.Error("expected error for empty project name")
	}
}

func TestManager_StartStop(t *testing.T) {
	manager := newTestManager(ManagerConfig{}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		return ReconcileResult{}
	}))

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	if !manager.IsRunning() {
		t.Error("expected manager to be running")
	}
	if err := manager.Stop(); err != nil {
		t.Fatalf("failed to stop manager: %v", err)
	}
	if manager.IsRunning() {
		t.Error("expected manager to be stopped")
	}
}

func TestManager_StartSyncsEveryProject(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)
	done := make(chan struct{}, 10)

	manager := newTestManager(ManagerConfig{WorkerCount: 2}, ReconcilerFunc(func(_ context.Context, req ReconcileRequest) ReconcileResult {
		mu.Lock()
		seen[req.Project]++
		mu.Unlock()
		done <- struct{}{}
		return ReconcileResult{}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "webapp"})
	_ = manager.AddProject(ProjectWatch{Name: "api"})

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for initial passes")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seen["webapp"] != 1 || seen["api"] != 1 {
		t.Errorf("expected one initial pass per project, got %v", seen)
	}
	if got := manager.Projects(); len(got) != 2 || got[0] != "api" {
		t.Errorf("unexpected projects: %v", got)
	}
}

func TestManager_TriggerReconcileAndStatus(t *testing.T) {
	reconciled := make(chan ReconcileRequest, 1)
	manager := newTestManager(ManagerConfig{}, ReconcilerFunc(func(_ context.Context, req ReconcileRequest) ReconcileResult {
		reconciled <- req
		return ReconcileResult{}
	}))

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	manager.TriggerReconcile("unknown")
	_ = manager.AddProject(ProjectWatch{Name: "webapp"})

	select {
	case req := <-reconciled:
		if req.Project != "webapp" {
			t.Errorf("expected project webapp, got %s", req.Project)
		}
		if req.Attempt != 1 {
			t.Errorf("expected attempt 1, got %d", req.Attempt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reconciliation")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := manager.GetStatus("webapp"); ok && status.State == StateSynced {
			if status.LastReconcileTime == nil {
				t.Error("expected LastReconcileTime to be set")
			}
			if _, ok := manager.GetStatus("unknown"); ok {
				t.Error("unknown project should not be tracked")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("webapp never reached Synced")
}

func TestManager_RetryOnError(t *testing.T) {
	var calls atomic.Int32
	manager := newTestManager(ManagerConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		if calls.Add(1) < 3 {
			return ReconcileResult{Error: errors.New("fetch failed")}
		}
		return ReconcileResult{}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "retry"})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	time.Sleep(500 * time.Millisecond)

	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	status, _ := manager.GetStatus("retry")
	if status.State != StateSynced || status.RetryCount != 0 {
		t.Errorf("expected Synced with reset retry count, got %+v", status)
	}
}

func TestManager_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	manager := newTestManager(ManagerConfig{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		calls.Add(1)
		return ReconcileResult{Error: errors.New("remote unreachable\nsecond line")}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "broken"})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	time.Sleep(300 * time.Millisecond)

	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	status, _ := manager.GetStatus("broken")
	if status.State != StateFailed {
		t.Errorf("expected Failed, got %s", status.State)
	}
	if status.LastError != "remote unreachable second line" {
		t.Errorf("unexpected sanitized error: %q", status.LastError)
	}
}

func TestManager_RequeueAfter(t *testing.T) {
	var calls atomic.Int32
	manager := newTestManager(ManagerConfig{}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		if calls.Add(1) == 1 {
			return ReconcileResult{RequeueAfter: 20 * time.Millisecond}
		}
		return ReconcileResult{}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "busy"})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 2 {
		t.Errorf("expected one requeued run, got %d calls", calls.Load())
	}
}

func TestManager_ReconcileTimeout(t *testing.T) {
	manager := newTestManager(ManagerConfig{
		MaxRetries:       1,
		ReconcileTimeout: 20 * time.Millisecond,
	}, ReconcilerFunc(func(ctx context.Context, _ ReconcileRequest) ReconcileResult {
		<-ctx.Done()
		return ReconcileResult{}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "slow"})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	defer func() { _ = manager.Stop() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, _ := manager.GetStatus("slow"); status.State == StateFailed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected timed out pass to be marked Failed")
}

func TestManager_IntervalTriggersPasses(t *testing.T) {
	var calls atomic.Int32
	manager := newTestManager(ManagerConfig{}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		calls.Add(1)
		return ReconcileResult{}
	}))

	_ = manager.AddProject(ProjectWatch{Name: "periodic", Interval: 30 * time.Millisecond})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	_ = manager.Stop()

	// initial pass plus several ticks
	if calls.Load() < 3 {
		t.Errorf("expected periodic passes, got %d", calls.Load())
	}
}

func TestManager_RemoveProject(t *testing.T) {
	var calls atomic.Int32
	manager := newTestManager(ManagerConfig{}, ReconcilerFunc(func(context.Context, ReconcileRequest) ReconcileResult {
		calls.Add(1)
		return ReconcileResult{}
	}))
	_ = manager.AddProject(ProjectWatch{Name: "gone", Interval: 20 * time.Millisecond})
	manager.RemoveProject("gone")

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("failed to start manager: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	_ = manager.Stop()

	if calls.Load() != 0 {
		t.Errorf("removed project was reconciled %d times", calls.Load())
	}
}

func TestManager_CalculateBackoff(t *testing.T) {
	manager := newTestManager(ManagerConfig{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second}, nil)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{70, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := manager.calculateBackoff(tt.attempt); got != tt.expected {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}
