package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/internal/template"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// TemplateStore owns the template of one parent. The template never has a
// source and is always disabled; both are re-asserted every time it is
// loaded or updated.
type TemplateStore struct {
	project string
	kind    job.Kind
	store   *store.Store

	mu  sync.RWMutex
	cfg job.Config
}

// templateSubmission is the accepted shape of a template update. Name and
// display name belong to the parent and are dropped.
type templateSubmission struct {
	Name        string `yaml:"name,omitempty"`
	DisplayName string `yaml:"displayName,omitempty"`
	job.Config  `yaml:",inline"`
}

func newTemplateStore(project string, kind job.Kind, st *store.Store) *TemplateStore {
	return &TemplateStore{project: project, kind: kind, store: st}
}

// Reload re-reads the persisted template and reports whether the effective
// configuration changed. A missing or unreadable template is replaced by a
// default one.
func (t *TemplateStore) Reload() (bool, error) {
	cfg, err := t.read()
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	changed := !t.cfg.Equal(cfg)
	t.cfg = cfg
	return changed, nil
}

// Get returns a copy of the template.
func (t *TemplateStore) Get() job.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.Clone()
}

// Update applies a YAML submission to the template. Unknown fields are
// rejected; name, display name, source and enable state are ignored.
func (t *TemplateStore) Update(data []byte) (job.Config, error) {
	var sub templateSubmission
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sub); err != nil {
		if errors.Is(err, io.EOF) {
			return job.Config{}, errors.New("template submission is empty")
		}
		return job.Config{}, fmt.Errorf("invalid template submission: %w", err)
	}

	if sub.Name != "" || sub.DisplayName != "" {
		logging.Debug("Template", "Ignoring name fields in template submission for %s", t.project)
	}

	cfg := sub.Config
	enforceTemplateInvariants(&cfg)
	if err := t.kind.Validate(cfg); err != nil {
		return job.Config{}, fmt.Errorf("invalid template: %w", err)
	}
	if err := checkTemplateFields(cfg); err != nil {
		return job.Config{}, fmt.Errorf("invalid template: %w", err)
	}

	if err := t.store.WriteTemplate(t.project, cfg); err != nil {
		return job.Config{}, err
	}

	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()

	logging.Info("Template", "Updated template of %s", t.project)
	return cfg.Clone(), nil
}

func (t *TemplateStore) read() (job.Config, error) {
	var cfg job.Config
	persist := false

	err := t.store.ReadTemplate(t.project, &cfg)
	var decodeErr *store.DecodeError
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		cfg = t.kind.NewTemplate()
		persist = true
		logging.Info("Template", "Created template for %s", t.project)
	case errors.As(err, &decodeErr):
		corrupt := &ConfigCorruptionError{Project: t.project, Path: decodeErr.Path, Err: decodeErr.Err}
		logging.Warn("Template", "%v; falling back to defaults", corrupt)
		cfg = t.kind.NewTemplate()
		persist = true
	default:
		return job.Config{}, fmt.Errorf("failed to load template of %s: %w", t.project, err)
	}

	if enforceTemplateInvariants(&cfg) {
		logging.Warn("Template", "Template of %s carried a source or was enabled; reset", t.project)
		persist = true
	}

	if persist {
		if err := t.store.WriteTemplate(t.project, cfg); err != nil {
			return job.Config{}, err
		}
	}
	return cfg, nil
}

// enforceTemplateInvariants forces the null source and the disabled state
// and reports whether anything changed.
func enforceTemplateInvariants(cfg *job.Config) bool {
	changed := !cfg.Disabled || cfg.Source != job.NoSource()
	cfg.Source = job.NoSource()
	cfg.Disabled = true
	return changed
}

func checkTemplateFields(cfg job.Config) error {
	for _, step := range cfg.Steps {
		if err := template.Check(step.Run); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	for key, value := range cfg.Parameters {
		if err := template.Check(value); err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
	}
	if err := template.Check(cfg.Workspace.Custom); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	return nil
}

// templatePath is used in reports and watcher mappings.
func templatePath(st *store.Store, project string) string {
	return filepath.Join(st.TemplateDir(project), store.ConfigFile)
}
