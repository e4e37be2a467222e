package config

import "time"

const (
	DefaultStateDir         = "state"
	DefaultKind             = "freestyle"
	DefaultSyncInterval     = 5 * time.Minute
	DefaultFetchTimeout     = 30 * time.Second
	DefaultRetentionPolicy  = "immediate"
	DefaultWorkers          = 2
	DefaultMaxRetries       = 5
	DefaultInitialBackoff   = time.Second
	DefaultMaxBackoff       = 5 * time.Minute
	DefaultReconcileTimeout = 5 * time.Minute
	DefaultDebounceInterval = 500 * time.Millisecond
)

// GetDefaultConfig returns the default configuration. It declares no
// projects.
func GetDefaultConfig() Config {
	return Config{
		StateDir: DefaultStateDir,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Reconciler: ReconcilerConfig{
			Workers:          DefaultWorkers,
			MaxRetries:       DefaultMaxRetries,
			InitialBackoff:   DefaultInitialBackoff,
			MaxBackoff:       DefaultMaxBackoff,
			ReconcileTimeout: DefaultReconcileTimeout,
			DebounceInterval: DefaultDebounceInterval,
		},
		Defaults: DefaultsConfig{
			Kind:         DefaultKind,
			SyncInterval: DefaultSyncInterval,
			FetchTimeout: DefaultFetchTimeout,
			Retention:    RetentionConfig{Policy: DefaultRetentionPolicy},
		},
	}
}

// Effective returns p with unset fields filled from d.
func (p ProjectConfig) Effective(d DefaultsConfig) ProjectConfig {
	if p.Kind == "" {
		p.Kind = d.Kind
	}
	if p.SyncInterval == 0 {
		p.SyncInterval = d.SyncInterval
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = d.FetchTimeout
	}
	if p.Retention.IsZero() {
		p.Retention = d.Retention
	}
	if p.Retention.Policy == "" {
		p.Retention.Policy = DefaultRetentionPolicy
	}
	if p.Source.Type == "" {
		p.Source.Type = SourceTypeNone
	}
	return p
}
