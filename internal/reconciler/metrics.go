package reconciler

import (
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// ReconcilerMetrics tracks synchronization metrics per project.
type ReconcilerMetrics struct {
	mu sync.RWMutex

	projects map[string]*projectMetrics

	totalAttempts  int64
	totalSuccesses int64
	totalFailures  int64
	totalCoalesced int64
}

type projectMetrics struct {
	Project         string
	Attempts        int64
	Successes       int64
	Failures        int64
	Coalesced       int64
	ChildrenCreated int64
	ChildrenDeleted int64
	ChildFailures   int64
	LastAttemptAt   time.Time
	LastSuccessAt   time.Time
	LastFailureAt   time.Time
	LastDuration    time.Duration
}

// NewReconcilerMetrics creates a new ReconcilerMetrics instance.
func NewReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{
		projects: make(map[string]*projectMetrics),
	}
}

func (m *ReconcilerMetrics) getOrCreate(project string) *projectMetrics {
	if pm, ok := m.projects[project]; ok {
		return pm
	}
	pm := &projectMetrics{Project: project}
	m.projects[project] = pm
	return pm
}

// RecordAttempt records the start of a pass.
func (m *ReconcilerMetrics) RecordAttempt(project string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm := m.getOrCreate(project)
	pm.Attempts++
	pm.LastAttemptAt = time.Now()
	m.totalAttempts++
}

// RecordSuccess records a completed pass and its child activity.
func (m *ReconcilerMetrics) RecordSuccess(project string, duration time.Duration, created, deleted, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm := m.getOrCreate(project)
	pm.Successes++
	pm.LastSuccessAt = time.Now()
	pm.LastDuration = duration
	pm.ChildrenCreated += int64(created)
	pm.ChildrenDeleted += int64(deleted)
	pm.ChildFailures += int64(failed)
	m.totalSuccesses++
}

// RecordFailure records an aborted pass.
func (m *ReconcilerMetrics) RecordFailure(project string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm := m.getOrCreate(project)
	pm.Failures++
	pm.LastFailureAt = time.Now()
	m.totalFailures++

	logging.Debug("ReconcilerMetrics", "Pass failure for %s: %s (failures: %d)", project, reason, pm.Failures)
}

// RecordCoalesced records a trigger that found a pass already running.
func (m *ReconcilerMetrics) RecordCoalesced(project string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(project).Coalesced++
	m.totalCoalesced++
}

// ProjectMetricView is a read-only view of one project's metrics.
type ProjectMetricView struct {
	Project         string        `json:"project" yaml:"project"`
	Attempts        int64         `json:"attempts" yaml:"attempts"`
	Successes       int64         `json:"successes" yaml:"successes"`
	Failures        int64         `json:"failures" yaml:"failures"`
	Coalesced       int64         `json:"coalesced" yaml:"coalesced"`
	ChildrenCreated int64         `json:"children_created" yaml:"children_created"`
	ChildrenDeleted int64         `json:"children_deleted" yaml:"children_deleted"`
	ChildFailures   int64         `json:"child_failures" yaml:"child_failures"`
	LastAttemptAt   time.Time     `json:"last_attempt_at,omitempty" yaml:"last_attempt_at,omitempty"`
	LastSuccessAt   time.Time     `json:"last_success_at,omitempty" yaml:"last_success_at,omitempty"`
	LastFailureAt   time.Time     `json:"last_failure_at,omitempty" yaml:"last_failure_at,omitempty"`
	LastDuration    time.Duration `json:"last_duration" yaml:"last_duration"`
}

// ReconcilerMetricsSummary provides a summary of synchronization metrics.
type ReconcilerMetricsSummary struct {
	TotalAttempts  int64               `json:"total_attempts" yaml:"total_attempts"`
	TotalSuccesses int64               `json:"total_successes" yaml:"total_successes"`
	TotalFailures  int64               `json:"total_failures" yaml:"total_failures"`
	TotalCoalesced int64               `json:"total_coalesced" yaml:"total_coalesced"`
	FailureRate    float64             `json:"failure_rate" yaml:"failure_rate"`
	Projects       []ProjectMetricView `json:"projects" yaml:"projects"`
}

// GetProjectMetrics returns the metrics of one project.
func (m *ReconcilerMetrics) GetProjectMetrics(project string) (ProjectMetricView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pm, ok := m.projects[project]
	if !ok {
		return ProjectMetricView{}, false
	}
	return pm.view(), true
}

// GetSummary returns a snapshot of all metrics, projects sorted by name.
func (m *ReconcilerMetrics) GetSummary() ReconcilerMetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := ReconcilerMetricsSummary{
		TotalAttempts:  m.totalAttempts,
		TotalSuccesses: m.totalSuccesses,
		TotalFailures:  m.totalFailures,
		TotalCoalesced: m.totalCoalesced,
		Projects:       make([]ProjectMetricView, 0, len(m.projects)),
	}
	if m.totalAttempts > 0 {
		s.FailureRate = float64(m.totalFailures) / float64(m.totalAttempts)
	}
	for _, pm := range m.projects {
		s.Projects = append(s.Projects, pm.view())
	}
	sort.Slice(s.Projects, func(i, j int) bool { return s.Projects[i].Project < s.Projects[j].Project })
	return s
}

// Reset clears all metrics.
func (m *ReconcilerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = make(map[string]*projectMetrics)
	m.totalAttempts = 0
	m.totalSuccesses = 0
	m.totalFailures = 0
	m.totalCoalesced = 0
}

func (pm *projectMetrics) view() ProjectMetricView {
	return ProjectMetricView{
		Project:         pm.Project,
		Attempts:        pm.Attempts,
		Successes:       pm.Successes,
		Failures:        pm.Failures,
		Coalesced:       pm.Coalesced,
		ChildrenCreated: pm.ChildrenCreated,
		ChildrenDeleted: pm.ChildrenDeleted,
		ChildFailures:   pm.ChildFailures,
		LastAttemptAt:   pm.LastAttemptAt,
		LastSuccessAt:   pm.LastSuccessAt,
		LastFailureAt:   pm.LastFailureAt,
		LastDuration:    pm.LastDuration,
	}
}
