package project

import (
	"time"

	"github.com/google/uuid"
)

// Action is what a pass did to one child.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionDeleted   Action = "deleted"
	ActionRetained  Action = "retained"
	ActionSkipped   Action = "skipped"
	ActionFailed    Action = "failed"
	ActionScheduled Action = "scheduled"
)

// Entry is one line of a pass report.
type Entry struct {
	Child   string `yaml:"child" json:"child"`
	Branch  string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Action  Action `yaml:"action" json:"action"`
	Op      string `yaml:"op,omitempty" json:"op,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Report is the activity record of one synchronization pass.
type Report struct {
	ID         string    `yaml:"id"`
	Project    string    `yaml:"project"`
	Source     string    `yaml:"source,omitempty"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
	Heads      int       `yaml:"heads"`
	// TemplateReloaded is set when an edit on disk changed the template.
	TemplateReloaded bool    `yaml:"templateReloaded,omitempty"`
	Entries          []Entry `yaml:"entries,omitempty"`
	// Skipped is set when the pass did not run, e.g. "Project disabled.".
	Skipped string `yaml:"skipped,omitempty"`
	// Error is set when the pass was aborted.
	Error string `yaml:"error,omitempty"`
}

func newReport(project string, now time.Time) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Project:   project,
		StartedAt: now,
	}
}

func (r *Report) add(child, branch string, action Action, msg string) {
	r.Entries = append(r.Entries, Entry{Child: child, Branch: branch, Action: action, Message: msg})
}

func (r *Report) fail(child, branch string, err *ChildError) {
	r.Entries = append(r.Entries, Entry{
		Child:   child,
		Branch:  branch,
		Action:  ActionFailed,
		Op:      err.Op,
		Message: err.Err.Error(),
	})
}

// Count returns how many entries have the given action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Children returns the names of the children with the given action.
func (r *Report) Children(action Action) []string {
	var names []string
	for _, e := range r.Entries {
		if e.Action == action {
			names = append(names, e.Child)
		}
	}
	return names
}

// Failed reports whether any child failed.
func (r *Report) Failed() bool {
	return r.Count(ActionFailed) > 0
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
