package job

import (
	"maps"
	"reflect"
	"slices"
)

// SourceTypeNone marks a binding that never checks anything out.
const SourceTypeNone = "none"

// SourceBinding is the job-ready source configuration of one child.
type SourceBinding struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url,omitempty"`
	Branch   string `yaml:"branch,omitempty"`
	Revision string `yaml:"revision,omitempty"`
}

// NoSource returns the null binding carried by the template.
func NoSource() SourceBinding {
	return SourceBinding{Type: SourceTypeNone}
}

// IsNone reports whether the binding is the null binding.
func (b SourceBinding) IsNone() bool {
	return b.Type == "" || b.Type == SourceTypeNone
}

// Step is one command run by a build.
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// Trigger describes when a child builds on its own.
type Trigger struct {
	Type string `yaml:"type"`
	Spec string `yaml:"spec,omitempty"`
}

// Workspace settings of a job.
type Workspace struct {
	Custom string `yaml:"custom,omitempty"`
	Clean  bool   `yaml:"clean,omitempty"`
}

// BuildRetention bounds how many builds a child keeps.
type BuildRetention struct {
	DaysToKeep int `yaml:"daysToKeep,omitempty"`
	NumToKeep  int `yaml:"numToKeep,omitempty"`
}

// Axis is one dimension of a matrix job.
type Axis struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// Config is the build configuration of the template and of every child.
type Config struct {
	Description    string              `yaml:"description,omitempty"`
	Steps          []Step              `yaml:"steps,omitempty"`
	Triggers       []Trigger           `yaml:"triggers,omitempty"`
	Parameters     map[string]string   `yaml:"parameters,omitempty"`
	Workspace      Workspace           `yaml:"workspace,omitempty"`
	Permissions    map[string][]string `yaml:"permissions,omitempty"`
	BuildRetention BuildRetention      `yaml:"buildRetention,omitempty"`
	Axes           []Axis              `yaml:"axes,omitempty"`
	Source         SourceBinding       `yaml:"source"`
	Disabled       bool                `yaml:"disabled"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Steps = slices.Clone(c.Steps)
	out.Triggers = slices.Clone(c.Triggers)
	out.Parameters = maps.Clone(c.Parameters)
	if c.Permissions != nil {
		out.Permissions = make(map[string][]string, len(c.Permissions))
		for principal, grants := range c.Permissions {
			out.Permissions[principal] = slices.Clone(grants)
		}
	}
	if c.Axes != nil {
		out.Axes = make([]Axis, len(c.Axes))
		for i, axis := range c.Axes {
			out.Axes[i] = Axis{Name: axis.Name, Values: slices.Clone(axis.Values)}
		}
	}
	return out
}

// Equal reports whether c and other describe the same configuration. Nil
// and empty collections are equal, since they read back the same once
// persisted.
func (c Config) Equal(other Config) bool {
	return reflect.DeepEqual(c.normalized(), other.normalized())
}

func (c Config) normalized() Config {
	out := c.Clone()
	if len(out.Steps) == 0 {
		out.Steps = nil
	}
	if len(out.Triggers) == 0 {
		out.Triggers = nil
	}
	if len(out.Parameters) == 0 {
		out.Parameters = nil
	}
	if len(out.Permissions) == 0 {
		out.Permissions = nil
	}
	for principal, grants := range out.Permissions {
		if len(grants) == 0 {
			out.Permissions[principal] = nil
		}
	}
	if len(out.Axes) == 0 {
		out.Axes = nil
	}
	for i := range out.Axes {
		if len(out.Axes[i].Values) == 0 {
			out.Axes[i].Values = nil
		}
	}
	return out
}

// Overrides are child-local fields that survive a template sync.
type Overrides struct {
	CustomWorkspace string `yaml:"customWorkspace,omitempty"`
}

// Child is one generated job bound to a live branch.
//
// Name is the encoded branch name and never changes for the life of the
// child. DisplayName is the decoded branch name.
type Child struct {
	Name        string    `yaml:"name"`
	DisplayName string    `yaml:"displayName,omitempty"`
	Parent      string    `yaml:"parent"`
	Config      Config    `yaml:"config"`
	Overrides   Overrides `yaml:"overrides,omitempty"`
	Disabled    bool      `yaml:"disabled"`
}

// Clone returns a deep copy of c.
func (c *Child) Clone() *Child {
	if c == nil {
		return nil
	}
	out := *c
	out.Config = c.Config.Clone()
	return &out
}

// Cause explains why a build was scheduled.
type Cause struct {
	Reason   string `yaml:"reason"`
	Revision string `yaml:"revision,omitempty"`
}

// CauseBranchIndexing is the reason used for builds of newly discovered branches.
const CauseBranchIndexing = "Branch indexing"
