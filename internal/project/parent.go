package project

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/scm"
)

const (
	// DefaultSyncInterval matches a "H/5 * * * *" schedule.
	DefaultSyncInterval = 5 * time.Minute
	// DefaultFetchTimeout bounds one FetchBranchHeads call.
	DefaultFetchTimeout = 30 * time.Second
)

// Settings are per-parent knobs of the synchronization pass.
type Settings struct {
	// SuppressNewBranchBuilds disables the build of newly discovered branches.
	SuppressNewBranchBuilds bool
	// FetchTimeout bounds the source call of a pass.
	FetchTimeout time.Duration
	// SyncInterval is how often the parent is synchronized periodically.
	SyncInterval time.Duration
}

// ParentSpec describes a parent to load.
type ParentSpec struct {
	Name      string
	Kind      job.Kind
	Source    scm.Source // nil means no source
	Retention RetentionPolicy
	Settings  Settings
}

// parentState is the persisted part of a parent besides its template and
// children.
type parentState struct {
	SchemaVersion       int                     `yaml:"schemaVersion"`
	Disabled            bool                    `yaml:"disabled"`
	DisabledSubProjects []string                `yaml:"disabledSubProjects,omitempty"`
	Orphans             map[string]OrphanRecord `yaml:"orphans,omitempty"`
}

// Parent is one multibranch project: its template, its children and the
// state of the enable/disable cascade.
type Parent struct {
	name      string
	kind      job.Kind
	settings  Settings
	retention RetentionPolicy

	// mu is held for the duration of a pass, a cascade and any other
	// mutation of children.
	mu sync.Mutex

	sourceMu sync.RWMutex
	source   scm.Source

	disabled    atomic.Bool
	template    *TemplateStore
	children    *Registry
	disabledSet *DisabledSet

	orphanMu sync.RWMutex
	orphans  map[string]OrphanRecord

	// lastReport is guarded by reportMu.
	reportMu   sync.RWMutex
	lastReport *Report
}

// Name returns the project name.
func (p *Parent) Name() string { return p.name }

// Kind returns the job kind of the template and children.
func (p *Parent) Kind() job.Kind { return p.kind }

// Settings returns the pass settings.
func (p *Parent) Settings() Settings { return p.settings }

// Retention returns the orphan policy.
func (p *Parent) Retention() RetentionPolicy { return p.retention }

// IsDisabled reports whether the parent is disabled.
func (p *Parent) IsDisabled() bool { return p.disabled.Load() }

// Source returns the configured source, or nil.
func (p *Parent) Source() scm.Source {
	p.sourceMu.RLock()
	defer p.sourceMu.RUnlock()
	return p.source
}

// SetSource replaces the source used by subsequent passes. nil removes it,
// which makes the next pass delete every child.
func (p *Parent) SetSource(src scm.Source) {
	p.sourceMu.Lock()
	defer p.sourceMu.Unlock()
	p.source = src
}

// Template returns a copy of the template configuration.
func (p *Parent) Template() job.Config { return p.template.Get() }

// Children returns copies of all children.
func (p *Parent) Children() []*job.Child { return p.children.List() }

// Child returns a copy of one child, or nil.
func (p *Parent) Child(name string) *job.Child { return p.children.Get(name) }

// DisabledSet returns the names recorded by the last disable cascade.
func (p *Parent) DisabledSet() []string { return p.disabledSet.Names() }

// Orphans returns the records of children whose branch is gone.
func (p *Parent) Orphans() map[string]OrphanRecord {
	p.orphanMu.RLock()
	defer p.orphanMu.RUnlock()
	return maps.Clone(p.orphans)
}

// IsOrphan reports whether the branch of child name is gone.
func (p *Parent) IsOrphan(name string) bool {
	p.orphanMu.RLock()
	defer p.orphanMu.RUnlock()
	_, ok := p.orphans[name]
	return ok
}

func (p *Parent) orphan(name string) (OrphanRecord, bool) {
	p.orphanMu.RLock()
	defer p.orphanMu.RUnlock()
	rec, ok := p.orphans[name]
	return rec, ok
}

func (p *Parent) setOrphan(name string, rec OrphanRecord) {
	p.orphanMu.Lock()
	defer p.orphanMu.Unlock()
	p.orphans[name] = rec
}

// clearOrphan forgets name and reports whether it was an orphan.
func (p *Parent) clearOrphan(name string) bool {
	p.orphanMu.Lock()
	defer p.orphanMu.Unlock()
	_, ok := p.orphans[name]
	delete(p.orphans, name)
	return ok
}

// LastReport returns the report of the most recent pass, or nil.
func (p *Parent) LastReport() *Report {
	p.reportMu.RLock()
	defer p.reportMu.RUnlock()
	return p.lastReport
}

func (p *Parent) setLastReport(r *Report) {
	p.reportMu.Lock()
	defer p.reportMu.Unlock()
	p.lastReport = r
}

// state captures what is persisted in state.yaml.
func (p *Parent) state() parentState {
	return parentState{
		SchemaVersion:       currentSchemaVersion,
		Disabled:            p.disabled.Load(),
		DisabledSubProjects: p.disabledSet.Names(),
		Orphans:             p.Orphans(),
	}
}
