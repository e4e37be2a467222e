package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
	return dir
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	expected := GetDefaultConfig()
	expected.StateDir = filepath.Join(dir, DefaultStateDir)
	assert.Equal(t, expected, cfg)
	assert.True(t, cfg.Reconciler.WatchEnabled())
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	dir := writeConfig(t, "")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSyncInterval, cfg.Defaults.SyncInterval)
}

func TestLoadConfig_FullFile(t *testing.T) {
	dir := writeConfig(t, `
stateDir: /var/lib/multibranch
logging:
  level: debug
  format: json
reconciler:
  workers: 4
  initialBackoff: 2s
  watchState: false
defaults:
  syncInterval: 10m
projects:
  - name: webapp
    source:
      type: git
      url: https://example.com/webapp.git
    retention:
      policy: grace
      maxPasses: 3
      maxAge: 72h
  - name: docs
    kind: matrix
    suppressNewBranchBuilds: true
    source:
      type: file
      headsFile: heads/docs.yaml
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/multibranch", cfg.StateDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Reconciler.Workers)
	assert.Equal(t, DefaultMaxRetries, cfg.Reconciler.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Reconciler.InitialBackoff)
	assert.False(t, cfg.Reconciler.WatchEnabled())
	assert.Equal(t, 10*time.Minute, cfg.Defaults.SyncInterval)
	assert.Equal(t, DefaultKind, cfg.Defaults.Kind)

	require.Equal(t, []string{"webapp", "docs"}, cfg.ProjectNames())

	webapp, ok := cfg.Project("webapp")
	require.True(t, ok)
	assert.Equal(t, RetentionConfig{Policy: "grace", MaxPasses: 3, MaxAge: 72 * time.Hour}, webapp.Retention)

	docs, _ := cfg.Project("docs")
	assert.Equal(t, filepath.Join(dir, "heads", "docs.yaml"), docs.Source.HeadsFile)
	assert.True(t, docs.SuppressNewBranchBuilds)

	_, ok = cfg.Project("missing")
	assert.False(t, ok)
}

func TestLoadConfig_ParseError(t *testing.T) {
	dir := writeConfig(t, "logging:\n  level: [unclosed\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var ce ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeParse, ce.ErrorType)
	assert.Equal(t, configFileName, ce.FileName)
	assert.NotEmpty(t, ce.Suggestions)
	assert.Contains(t, ce.DetailedError(), "Configuration Error in config.yaml")
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	dir := writeConfig(t, "stateDir: x\nunknownKey: 1\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	var ce ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeParse, ce.ErrorType)
	assert.Equal(t, 2, ce.LineNumber)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	dir := writeConfig(t, `
projects:
  - name: webapp
    source:
      type: svn
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var ce ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeValidation, ce.ErrorType)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "projects[0].source.type", verrs[0].Field)
}

func TestProjectConfig_Effective(t *testing.T) {
	defaults := GetDefaultConfig().Defaults

	p := ProjectConfig{Name: "webapp"}.Effective(defaults)
	assert.Equal(t, DefaultKind, p.Kind)
	assert.Equal(t, DefaultSyncInterval, p.SyncInterval)
	assert.Equal(t, DefaultFetchTimeout, p.FetchTimeout)
	assert.Equal(t, "immediate", p.Retention.Policy)
	assert.Equal(t, SourceTypeNone, p.Source.Type)

	custom := ProjectConfig{
		Name:         "api",
		Kind:         "matrix",
		SyncInterval: time.Minute,
		Retention:    RetentionConfig{MaxPasses: 2},
	}.Effective(defaults)
	assert.Equal(t, "matrix", custom.Kind)
	assert.Equal(t, time.Minute, custom.SyncInterval)
	assert.Equal(t, RetentionConfig{Policy: "immediate", MaxPasses: 2}, custom.Retention)
}
