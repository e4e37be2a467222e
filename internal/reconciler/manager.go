package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/multibranch/pkg/logging"
	pkgstrings "github.com/giantswarm/multibranch/pkg/strings"
)

// maxErrorLength bounds error messages kept in a status.
const maxErrorLength = 256

// Manager drives synchronization passes for all registered projects.
//
// It manages:
//   - Change detectors (interval and filesystem)
//   - The project reconciler
//   - A coalescing work queue and worker pool
//   - Retry logic with exponential backoff
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	// detectors produce change events
	detectors []ChangeDetector

	// reconciler runs one pass of a project
	reconciler Reconciler

	// projects holds the registered watches by name
	projects map[string]ProjectWatch

	// queue is the work queue for reconciliation requests
	queue *projectQueue

	// statusTracker tracks reconciliation status per project
	statusTracker map[string]*ReconcileStatus

	metrics *ReconcilerMetrics

	// changeChan receives change events from detectors
	changeChan chan ChangeEvent

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool
}

// NewManager creates a new manager around reconciler.
func NewManager(config ManagerConfig, reconciler Reconciler) *Manager {
	if config.WorkerCount == 0 {
		config.WorkerCount = 2
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 5 * time.Minute
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.ReconcileTimeout == 0 {
		config.ReconcileTimeout = 5 * time.Minute
	}
	if config.Metrics == nil {
		config.Metrics = NewReconcilerMetrics()
	}

	m := &Manager{
		config:        config,
		reconciler:    reconciler,
		projects:      make(map[string]ProjectWatch),
		queue:         NewQueue(),
		statusTracker: make(map[string]*ReconcileStatus),
		metrics:       config.Metrics,
		changeChan:    make(chan ChangeEvent, 100),
	}
	m.detectors = append(m.detectors, NewIntervalDetector())
	if !config.DisableFilesystemWatch {
		m.detectors = append(m.detectors, NewFilesystemDetector(config.DebounceInterval))
	}
	return m
}

// Metrics returns the manager's metrics.
func (m *Manager) Metrics() *ReconcilerMetrics {
	return m.metrics
}

// AddProject registers a project with all detectors and queues an initial
// pass when the manager is running.
func (m *Manager) AddProject(w ProjectWatch) error {
	if w.Name == "" {
		return errors.New("project name is required")
	}

	m.mu.Lock()
	m.projects[w.Name] = w
	detectors := append([]ChangeDetector(nil), m.detectors...)
	running := m.running
	m.mu.Unlock()

	var errs []error
	for _, d := range detectors {
		if err := d.AddProject(w); err != nil {
			errs = append(errs, fmt.Errorf("%s detector: %w", d.GetSource(), err))
		}
	}
	if running {
		m.TriggerReconcile(w.Name)
	}
	logging.Info("ReconcileManager", "Registered project %s (interval %v)", w.Name, w.Interval)
	return errors.Join(errs...)
}

// RemoveProject unregisters a project. A pass already running completes.
func (m *Manager) RemoveProject(name string) {
	m.mu.Lock()
	delete(m.projects, name)
	delete(m.statusTracker, name)
	detectors := append([]ChangeDetector(nil), m.detectors...)
	m.mu.Unlock()

	for _, d := range detectors {
		if err := d.RemoveProject(name); err != nil {
			logging.Warn("ReconcileManager", "Failed to remove %s from %s detector: %v", name, d.GetSource(), err)
		}
	}
}

// Start begins the reconciliation system and queues one pass per project.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true
	detectors := append([]ChangeDetector(nil), m.detectors...)
	names := m.projectNamesLocked()
	m.mu.Unlock()

	for _, d := range detectors {
		if err := d.Start(m.ctx, m.changeChan); err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.cancelFunc()
			return fmt.Errorf("failed to start %s detector: %w", d.GetSource(), err)
		}
	}

	m.wg.Add(1)
	go m.processChangeEvents()

	for i := 0; i < m.config.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	for _, name := range names {
		m.TriggerReconcile(name)
	}

	logging.Info("ReconcileManager", "Started with %d workers for %d projects", m.config.WorkerCount, len(names))
	return nil
}

func (m *Manager) projectNamesLocked() []string {
	names := make([]string, 0, len(m.projects))
	for name := range m.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// processChangeEvents converts change events to reconcile requests.
func (m *Manager) processChangeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.changeChan:
			if !ok {
				return
			}
			m.handleChangeEvent(event)
		}
	}
}

// handleChangeEvent processes a single change event.
func (m *Manager) handleChangeEvent(event ChangeEvent) {
	m.mu.RLock()
	_, known := m.projects[event.Project]
	m.mu.RUnlock()
	if !known {
		logging.Debug("ReconcileManager", "Ignoring change event for unknown project %s", event.Project)
		return
	}

	logging.Debug("ReconcileManager", "Handling change event: %s %s from %s",
		event.Operation, event.Project, event.Source)

	m.updateStatus(event.Project, StatePending, "")
	m.queue.Add(ReconcileRequest{Project: event.Project, Attempt: 1})
}

// worker processes reconciliation requests from the queue.
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	logging.Debug("ReconcileManager", "Worker %d started", id)

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Worker %d shutting down", id)
			return
		}

		m.processRequest(req)
		m.queue.Done(req)
	}
}

// processRequest handles a single reconciliation request.
func (m *Manager) processRequest(req ReconcileRequest) {
	m.mu.RLock()
	_, known := m.projects[req.Project]
	timeout := m.config.ReconcileTimeout
	m.mu.RUnlock()

	if !known {
		logging.Debug("ReconcileManager", "Dropping request for removed project %s", req.Project)
		return
	}

	m.updateStatus(req.Project, StateReconciling, "")
	logging.Debug("ReconcileManager", "Reconciling %s (attempt %d)", req.Project, req.Attempt)

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	result := m.reconciler.Reconcile(ctx, req)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Errorf("reconciliation timed out after %v", timeout)
	}

	if result.Error != nil {
		m.handleReconcileError(req, result)
	} else if result.Requeue || result.RequeueAfter > 0 {
		m.handleRequeue(req, result)
	} else {
		m.handleSuccess(req)
	}
}

// handleReconcileError handles a failed reconciliation.
func (m *Manager) handleReconcileError(req ReconcileRequest, result ReconcileResult) {
	logging.Warn("ReconcileManager", "Reconciliation failed for %s: %v", req.Project, result.Error)

	msg := pkgstrings.Truncate(result.Error.Error(), maxErrorLength)

	if req.Attempt >= m.config.MaxRetries {
		logging.Error("ReconcileManager", result.Error, "Max retries exceeded for %s", req.Project)
		m.updateStatus(req.Project, StateFailed, msg)
		return
	}

	m.updateStatus(req.Project, StateError, msg)

	backoff := m.calculateBackoff(req.Attempt)
	req.Attempt++
	req.LastError = result.Error
	m.queue.AddAfter(req, backoff)

	logging.Debug("ReconcileManager", "Requeuing %s after %v (attempt %d)", req.Project, backoff, req.Attempt)
}

// handleRequeue handles a reconciliation that asked to run again later.
func (m *Manager) handleRequeue(req ReconcileRequest, result ReconcileResult) {
	delay := result.RequeueAfter
	if delay == 0 {
		delay = m.config.InitialBackoff
	}

	m.queue.AddAfter(ReconcileRequest{Project: req.Project, Attempt: 1}, delay)
	m.updateStatus(req.Project, StatePending, "")
	logging.Debug("ReconcileManager", "Requeuing %s after %v", req.Project, delay)
}

// handleSuccess handles a successful reconciliation.
func (m *Manager) handleSuccess(req ReconcileRequest) {
	logging.Debug("ReconcileManager", "Successfully reconciled %s", req.Project)
	m.updateStatus(req.Project, StateSynced, "")
}

// calculateBackoff computes exponential backoff capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	if attempt > 30 {
		return m.config.MaxBackoff
	}
	backoff := m.config.InitialBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > m.config.MaxBackoff || backoff <= 0 {
		backoff = m.config.MaxBackoff
	}
	return backoff
}

// updateStatus updates the reconciliation status for a project.
func (m *Manager) updateStatus(project string, state ReconcileState, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statusTracker[project]
	if !ok {
		status = &ReconcileStatus{Project: project}
		m.statusTracker[project] = status
	}

	status.State = state
	status.LastError = errMsg

	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.RetryCount = 0
	case StateError:
		status.RetryCount++
	}
}

// Stop gracefully shuts down the manager.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	detectors := append([]ChangeDetector(nil), m.detectors...)
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Stopping reconciliation manager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var errs []error
	for _, d := range detectors {
		if err := d.Stop(); err != nil {
			logging.Error("ReconcileManager", err, "Error stopping %s detector", d.GetSource())
			errs = append(errs, err)
		}
	}

	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info("ReconcileManager", "Reconciliation manager stopped")
	return errors.Join(errs...)
}

// GetStatus returns a copy of the status of a project.
func (m *Manager) GetStatus(project string) (ReconcileStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statusTracker[project]
	if !ok {
		return ReconcileStatus{}, false
	}
	return *status, true
}

// GetAllStatuses returns all statuses sorted by project.
func (m *Manager) GetAllStatuses() []ReconcileStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ReconcileStatus, 0, len(m.statusTracker))
	for _, status := range m.statusTracker {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Project < statuses[j].Project })
	return statuses
}

// TriggerReconcile manually triggers a pass for a project.
func (m *Manager) TriggerReconcile(project string) {
	m.handleChangeEvent(ChangeEvent{
		Project:   project,
		Operation: OperationUpdate,
		Timestamp: time.Now(),
		Source:    SourceManual,
	})
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the current queue length.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}

// Projects returns the registered project names, sorted.
func (m *Manager) Projects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projectNamesLocked()
}
