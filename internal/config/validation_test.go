package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.False(t, Validate(GetDefaultConfig()).HasErrors())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{
			name:   "empty state dir",
			mutate: func(c *Config) { c.StateDir = " " },
			fields: []string{"stateDir"},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			fields: []string{"logging.level"},
		},
		{
			name:   "log level is case insensitive",
			mutate: func(c *Config) { c.Logging.Level = "DEBUG" },
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			fields: []string{"logging.format"},
		},
		{
			name: "negative reconciler values",
			mutate: func(c *Config) {
				c.Reconciler.Workers = -1
				c.Reconciler.MaxRetries = -1
				c.Reconciler.DebounceInterval = -time.Second
			},
			fields: []string{"reconciler.workers", "reconciler.maxRetries", "reconciler.debounceInterval"},
		},
		{
			name: "initial backoff above max",
			mutate: func(c *Config) {
				c.Reconciler.InitialBackoff = time.Hour
				c.Reconciler.MaxBackoff = time.Minute
			},
			fields: []string{"reconciler.initialBackoff"},
		},
		{
			name:   "unknown default kind",
			mutate: func(c *Config) { c.Defaults.Kind = "pipeline" },
			fields: []string{"defaults.kind"},
		},
		{
			name:   "immediate retention with bounds",
			mutate: func(c *Config) { c.Defaults.Retention = RetentionConfig{Policy: "immediate", MaxPasses: 2} },
			fields: []string{"defaults.retention"},
		},
		{
			name: "grace retention",
			mutate: func(c *Config) {
				c.Defaults.Retention = RetentionConfig{Policy: "grace", MaxPasses: 2, MaxAge: time.Hour}
			},
		},
		{
			name:   "unknown retention policy",
			mutate: func(c *Config) { c.Defaults.Retention = RetentionConfig{Policy: "forever"} },
			fields: []string{"defaults.retention.policy"},
		},
		{
			name: "duplicate project names",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{Name: "webapp"}, {Name: "webapp"}}
			},
			fields: []string{"projects[1].name"},
		},
		{
			name:   "missing project name",
			mutate: func(c *Config) { c.Projects = []ProjectConfig{{}} },
			fields: []string{"projects[0].name"},
		},
		{
			name:   "project name altered by codec",
			mutate: func(c *Config) { c.Projects = []ProjectConfig{{Name: "feature/x"}} },
			fields: []string{"projects[0].name"},
		},
		{
			name: "project kind and durations",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{Name: "webapp", Kind: "unknown", FetchTimeout: -time.Second}}
			},
			fields: []string{"projects[0].kind", "projects[0].fetchTimeout"},
		},
		{
			name: "module build kinds",
			mutate: func(c *Config) {
				c.Defaults.Kind = "maven"
				c.Projects = []ProjectConfig{{Name: "webapp", Kind: "ivy"}}
			},
		},
		{
			name: "static source with empty branch",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{
					Name:   "webapp",
					Source: SourceConfig{Type: SourceTypeStatic, Branches: []string{"main", ""}},
				}}
			},
			fields: []string{"projects[0].source.branches[1]"},
		},
		{
			name: "file source without heads file",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{Name: "webapp", Source: SourceConfig{Type: SourceTypeFile}}}
			},
			fields: []string{"projects[0].source.headsFile"},
		},
		{
			name: "git source with url and path",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{
					Name:   "webapp",
					Source: SourceConfig{Type: SourceTypeGit, URL: "https://example.com/r.git", Path: "/src/r"},
				}}
			},
			fields: []string{"projects[0].source"},
		},
		{
			name: "git source with url",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{
					Name:   "webapp",
					Source: SourceConfig{Type: SourceTypeGit, URL: "https://example.com/r.git"},
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(&c)

			errs := Validate(c)
			if len(tt.fields) == 0 {
				assert.False(t, errs.HasErrors(), "unexpected errors: %v", errs)
				return
			}
			assert.Equal(t, tt.fields, fields(errs))
		})
	}
}

func TestValidateProjectName(t *testing.T) {
	require.NoError(t, ValidateProjectName("name", "webapp-2"))
	assert.Error(t, ValidateProjectName("name", ".."))
	assert.Error(t, ValidateProjectName("name", "my project"))
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is required")
	assert.Equal(t, "field 'a': is required", errs.Error())

	errs.Add("b", "must not be negative", -1)
	assert.Equal(t, "validation failed: field 'a': is required; field 'b': must not be negative", errs.Error())
}
