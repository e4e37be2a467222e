package job

import (
	"fmt"
	"sort"
	"sync"

	"github.com/giantswarm/multibranch/internal/template"
)

// Kind is the capability implemented once per job type. The engine is
// generic over it.
type Kind interface {
	// Name returns the identifier used in configuration.
	Name() string

	// NewTemplate returns the default configuration of a fresh template.
	NewTemplate() Config

	// Validate checks a configuration submitted for the template.
	Validate(cfg Config) error

	// ConfigureFromTemplate derives the configuration of child from tmpl.
	// Later inputs win: the template copy is rendered for the branch, then
	// the binding is applied, then the child's own overrides and disabled
	// state.
	ConfigureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error)
}

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Kind{}
)

func init() {
	RegisterKind(Freestyle{})
	RegisterKind(Matrix{})
	RegisterKind(Maven{})
	RegisterKind(Ivy{})
}

// RegisterKind makes k available to LookupKind. Registering the same name
// twice replaces the earlier kind.
func RegisterKind(k Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[k.Name()] = k
}

// LookupKind returns the kind registered under name.
func LookupKind(name string) (Kind, error) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	k, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", name)
	}
	return k, nil
}

// KindNames lists the registered kinds in sorted order.
func KindNames() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freestyle runs a list of steps in one workspace.
type Freestyle struct{}

func (Freestyle) Name() string { return "freestyle" }

func (Freestyle) NewTemplate() Config {
	return Config{
		Source:   NoSource(),
		Disabled: true,
	}
}

func (Freestyle) Validate(cfg Config) error {
	return validateCommon(cfg)
}

func (Freestyle) ConfigureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error) {
	return configureFromTemplate(tmpl, child, binding)
}

// Matrix runs its steps once per combination of axis values.
type Matrix struct{}

func (Matrix) Name() string { return "matrix" }

func (Matrix) NewTemplate() Config {
	return Config{
		Axes:     []Axis{{Name: "label", Values: []string{"default"}}},
		Source:   NoSource(),
		Disabled: true,
	}
}

func (Matrix) Validate(cfg Config) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	if len(cfg.Axes) == 0 {
		return fmt.Errorf("matrix job requires at least one axis")
	}
	seen := make(map[string]bool, len(cfg.Axes))
	for i, axis := range cfg.Axes {
		if axis.Name == "" {
			return fmt.Errorf("axes[%d]: name is required", i)
		}
		if seen[axis.Name] {
			return fmt.Errorf("axes[%d]: duplicate axis %q", i, axis.Name)
		}
		seen[axis.Name] = true
		if len(axis.Values) == 0 {
			return fmt.Errorf("axis %q has no values", axis.Name)
		}
	}
	return nil
}

func (Matrix) ConfigureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error) {
	return configureFromTemplate(tmpl, child, binding)
}

// Maven builds the Maven module set of the checked out branch. Its steps
// carry the goals.
type Maven struct{}

func (Maven) Name() string { return "maven" }

func (Maven) NewTemplate() Config {
	return Config{
		Steps:    []Step{{Name: "maven", Run: "mvn -B -f pom.xml verify"}},
		Source:   NoSource(),
		Disabled: true,
	}
}

func (Maven) Validate(cfg Config) error {
	return validateModuleBuild("maven", cfg)
}

func (Maven) ConfigureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error) {
	return configureFromTemplate(tmpl, child, binding)
}

// Ivy builds the Ivy modules of the checked out branch through Ant.
type Ivy struct{}

func (Ivy) Name() string { return "ivy" }

func (Ivy) NewTemplate() Config {
	return Config{
		Steps:    []Step{{Name: "ivy", Run: "ant -f build.xml"}},
		Source:   NoSource(),
		Disabled: true,
	}
}

func (Ivy) Validate(cfg Config) error {
	return validateModuleBuild("ivy", cfg)
}

func (Ivy) ConfigureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error) {
	return configureFromTemplate(tmpl, child, binding)
}

// validateModuleBuild applies to kinds whose build is defined by its steps.
func validateModuleBuild(kind string, cfg Config) error {
	if err := validateCommon(cfg); err != nil {
		return err
	}
	if len(cfg.Steps) == 0 {
		return fmt.Errorf("%s job requires at least one step", kind)
	}
	return nil
}

func validateCommon(cfg Config) error {
	for i, step := range cfg.Steps {
		if step.Run == "" {
			return fmt.Errorf("steps[%d]: run is required", i)
		}
	}
	for i, trigger := range cfg.Triggers {
		if trigger.Type == "" {
			return fmt.Errorf("triggers[%d]: type is required", i)
		}
	}
	if cfg.BuildRetention.DaysToKeep < 0 || cfg.BuildRetention.NumToKeep < 0 {
		return fmt.Errorf("buildRetention values must not be negative")
	}
	return nil
}

func configureFromTemplate(tmpl Config, child *Child, binding SourceBinding) (Config, error) {
	cfg := tmpl.Clone()

	data := template.BranchData{
		Branch:  child.DisplayName,
		Name:    child.Name,
		Project: child.Parent,
	}
	for i := range cfg.Steps {
		run, err := template.Render(cfg.Steps[i].Run, data)
		if err != nil {
			return Config{}, fmt.Errorf("step %q: %w", cfg.Steps[i].Name, err)
		}
		cfg.Steps[i].Run = run
	}
	for key, value := range cfg.Parameters {
		rendered, err := template.Render(value, data)
		if err != nil {
			return Config{}, fmt.Errorf("parameter %q: %w", key, err)
		}
		cfg.Parameters[key] = rendered
	}
	workspace, err := template.Render(cfg.Workspace.Custom, data)
	if err != nil {
		return Config{}, fmt.Errorf("workspace: %w", err)
	}
	cfg.Workspace.Custom = workspace

	cfg.Source = binding

	if child.Overrides.CustomWorkspace != "" {
		cfg.Workspace.Custom = child.Overrides.CustomWorkspace
	}
	cfg.Disabled = child.Disabled

	return cfg, nil
}
