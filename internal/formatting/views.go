package formatting

import (
	"sort"
	"time"

	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/reconciler"
)

// ChildView is the displayable state of one child.
type ChildView struct {
	Name          string    `json:"name" yaml:"name"`
	Branch        string    `json:"branch" yaml:"branch"`
	Enabled       bool      `json:"enabled" yaml:"enabled"`
	Revision      string    `json:"revision,omitempty" yaml:"revision,omitempty"`
	Orphan        bool      `json:"orphan,omitempty" yaml:"orphan,omitempty"`
	MissingSince  time.Time `json:"missingSince,omitempty" yaml:"missingSince,omitempty"`
	MissedPasses  int       `json:"missedPasses,omitempty" yaml:"missedPasses,omitempty"`
	PendingBuilds int       `json:"pendingBuilds,omitempty" yaml:"pendingBuilds,omitempty"`
}

// ProjectView is the displayable state of one project.
type ProjectView struct {
	Name      string      `json:"name" yaml:"name"`
	Kind      string      `json:"kind" yaml:"kind"`
	Source    string      `json:"source" yaml:"source"`
	Retention string      `json:"retention" yaml:"retention"`
	Disabled  bool        `json:"disabled" yaml:"disabled"`
	Children  []ChildView `json:"children" yaml:"children"`
	LastPass  *ReportView `json:"lastPass,omitempty" yaml:"lastPass,omitempty"`
}

// PendingFunc returns the number of queued builds of a child.
type PendingFunc func(project, child string) int

// NewProjectView captures the current state of p. pending may be nil.
func NewProjectView(p *project.Parent, pending PendingFunc) ProjectView {
	view := ProjectView{
		Name:      p.Name(),
		Kind:      p.Kind().Name(),
		Source:    "none",
		Retention: p.Retention().Name(),
		Disabled:  p.IsDisabled(),
		Children:  []ChildView{},
	}
	if src := p.Source(); src != nil {
		view.Source = src.ID()
	}

	orphans := p.Orphans()
	for _, c := range p.Children() {
		cv := ChildView{
			Name:     c.Name,
			Branch:   c.DisplayName,
			Enabled:  !c.Disabled,
			Revision: c.Config.Source.Revision,
		}
		if rec, ok := orphans[c.Name]; ok {
			cv.Orphan = true
			cv.MissingSince = rec.Since
			cv.MissedPasses = rec.MissedPasses
		}
		if pending != nil {
			cv.PendingBuilds = pending(p.Name(), c.Name)
		}
		view.Children = append(view.Children, cv)
	}
	sort.Slice(view.Children, func(i, j int) bool { return view.Children[i].Name < view.Children[j].Name })

	if r := p.LastReport(); r != nil {
		rv := NewReportView(r)
		view.LastPass = &rv
	}
	return view
}

// ReportView summarizes one synchronization pass.
type ReportView struct {
	ID               string          `json:"id" yaml:"id"`
	Project          string          `json:"project" yaml:"project"`
	StartedAt        time.Time       `json:"startedAt" yaml:"startedAt"`
	Duration         time.Duration   `json:"duration" yaml:"duration"`
	Heads            int             `json:"heads" yaml:"heads"`
	TemplateReloaded bool            `json:"templateReloaded,omitempty" yaml:"templateReloaded,omitempty"`
	Counts           map[string]int  `json:"counts,omitempty" yaml:"counts,omitempty"`
	Entries          []project.Entry `json:"entries,omitempty" yaml:"entries,omitempty"`
	Skipped          string          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error            string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewReportView converts a pass report. Unchanged children are counted
// but not listed.
func NewReportView(r *project.Report) ReportView {
	view := ReportView{
		ID:               r.ID,
		Project:          r.Project,
		StartedAt:        r.StartedAt,
		Duration:         r.Duration(),
		Heads:            r.Heads,
		TemplateReloaded: r.TemplateReloaded,
		Skipped:          r.Skipped,
		Error:            r.Error,
	}
	for _, e := range r.Entries {
		if view.Counts == nil {
			view.Counts = make(map[string]int)
		}
		view.Counts[string(e.Action)]++
		if e.Action != project.ActionUnchanged {
			view.Entries = append(view.Entries, e)
		}
	}
	return view
}

// Outcome is a one-word result of the pass.
func (r ReportView) Outcome() string {
	switch {
	case r.Error != "":
		return "failed"
	case r.Skipped != "":
		return "skipped"
	case r.Counts[string(project.ActionFailed)] > 0:
		return "partial"
	default:
		return "ok"
	}
}

// ProjectStatusView is the reconciler's view of one project.
type ProjectStatusView struct {
	Project    string                        `json:"project" yaml:"project"`
	State      string                        `json:"state" yaml:"state"`
	LastSynced *time.Time                    `json:"lastSynced,omitempty" yaml:"lastSynced,omitempty"`
	RetryCount int                           `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`
	LastError  string                        `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	Metrics    *reconciler.ProjectMetricView `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// StatusView is the state of the background reconciler.
type StatusView struct {
	Running        bool                `json:"running" yaml:"running"`
	QueueLength    int                 `json:"queueLength" yaml:"queueLength"`
	TotalAttempts  int64               `json:"totalAttempts" yaml:"totalAttempts"`
	TotalFailures  int64               `json:"totalFailures" yaml:"totalFailures"`
	TotalCoalesced int64               `json:"totalCoalesced" yaml:"totalCoalesced"`
	FailureRate    float64             `json:"failureRate" yaml:"failureRate"`
	Projects       []ProjectStatusView `json:"projects" yaml:"projects"`
}

// NewStatusView joins reconcile statuses with their metrics.
func NewStatusView(running bool, queueLength int, statuses []reconciler.ReconcileStatus, summary reconciler.ReconcilerMetricsSummary) StatusView {
	view := StatusView{
		Running:        running,
		QueueLength:    queueLength,
		TotalAttempts:  summary.TotalAttempts,
		TotalFailures:  summary.TotalFailures,
		TotalCoalesced: summary.TotalCoalesced,
		FailureRate:    summary.FailureRate,
		Projects:       make([]ProjectStatusView, 0, len(statuses)),
	}

	metrics := make(map[string]reconciler.ProjectMetricView, len(summary.Projects))
	for _, m := range summary.Projects {
		metrics[m.Project] = m
	}
	for _, s := range statuses {
		pv := ProjectStatusView{
			Project:    s.Project,
			State:      string(s.State),
			LastSynced: s.LastReconcileTime,
			RetryCount: s.RetryCount,
			LastError:  s.LastError,
		}
		if m, ok := metrics[s.Project]; ok {
			pv.Metrics = &m
		}
		view.Projects = append(view.Projects, pv)
	}
	return view
}
