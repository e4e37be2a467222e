package config

import "time"

// Config is the top-level configuration structure for multibranch.
type Config struct {
	// StateDir is the root of the on-disk project store. Relative paths are
	// resolved against the configuration directory.
	StateDir   string           `yaml:"stateDir,omitempty"`
	Logging    LoggingConfig    `yaml:"logging"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Projects   []ProjectConfig  `yaml:"projects,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// ReconcilerConfig configures the background synchronization manager.
type ReconcilerConfig struct {
	Workers          int           `yaml:"workers,omitempty"`
	MaxRetries       int           `yaml:"maxRetries,omitempty"`
	InitialBackoff   time.Duration `yaml:"initialBackoff,omitempty"`
	MaxBackoff       time.Duration `yaml:"maxBackoff,omitempty"`
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout,omitempty"`
	DebounceInterval time.Duration `yaml:"debounceInterval,omitempty"`
	// WatchState enables filesystem watching of templates and heads files.
	WatchState *bool `yaml:"watchState,omitempty"`
}

// WatchEnabled reports whether filesystem watching is on. It defaults to true.
func (r ReconcilerConfig) WatchEnabled() bool {
	return r.WatchState == nil || *r.WatchState
}

// DefaultsConfig holds values applied to projects that do not set them.
type DefaultsConfig struct {
	Kind         string          `yaml:"kind,omitempty"`
	SyncInterval time.Duration   `yaml:"syncInterval,omitempty"`
	FetchTimeout time.Duration   `yaml:"fetchTimeout,omitempty"`
	Retention    RetentionConfig `yaml:"retention,omitempty"`
}

// ProjectConfig declares one multibranch project.
type ProjectConfig struct {
	Name                    string          `yaml:"name"`
	Kind                    string          `yaml:"kind,omitempty"`
	SyncInterval            time.Duration   `yaml:"syncInterval,omitempty"`
	FetchTimeout            time.Duration   `yaml:"fetchTimeout,omitempty"`
	SuppressNewBranchBuilds bool            `yaml:"suppressNewBranchBuilds,omitempty"`
	Retention               RetentionConfig `yaml:"retention,omitempty"`
	Source                  SourceConfig    `yaml:"source"`
}

// RetentionConfig selects what happens to children whose branch is gone.
type RetentionConfig struct {
	Policy    string        `yaml:"policy,omitempty"` // immediate or grace
	MaxPasses int           `yaml:"maxPasses,omitempty"`
	MaxAge    time.Duration `yaml:"maxAge,omitempty"`
}

// IsZero reports whether nothing was configured.
func (r RetentionConfig) IsZero() bool {
	return r.Policy == "" && r.MaxPasses == 0 && r.MaxAge == 0
}

// SourceType names a branch source implementation.
type SourceType string

const (
	SourceTypeNone   SourceType = "none"
	SourceTypeStatic SourceType = "static"
	SourceTypeFile   SourceType = "file"
	SourceTypeGit    SourceType = "git"
)

// SourceConfig describes where branch heads come from.
type SourceConfig struct {
	Type SourceType `yaml:"type,omitempty"`
	// URL is a remote git URL (git).
	URL string `yaml:"url,omitempty"`
	// Path is a local git repository (git).
	Path string `yaml:"path,omitempty"`
	// Branches is the fixed branch list (static).
	Branches []string `yaml:"branches,omitempty"`
	// HeadsFile is a YAML list of branch heads (file).
	HeadsFile string `yaml:"headsFile,omitempty"`
}

// Project returns the project with the given name.
func (c Config) Project(name string) (ProjectConfig, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ProjectConfig{}, false
}

// ProjectNames returns the configured project names in file order.
func (c Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Projects))
	for _, p := range c.Projects {
		names = append(names, p.Name)
	}
	return names
}
