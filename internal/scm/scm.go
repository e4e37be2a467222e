// Package scm defines the source-control collaborator consumed by the
// reconciliation engine and provides the sources that need no network
// access. The git source lives in the gitscm subpackage.
package scm

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/internal/job"
)

// BranchHead describes one branch reported by a source.
type BranchHead struct {
	Name     string `yaml:"name"`
	Revision string `yaml:"revision,omitempty"`
}

// Source reports the live branches of a repository.
type Source interface {
	// ID identifies the source in logs and reports.
	ID() string

	// FetchBranchHeads returns every live branch. It may block on I/O and
	// must honour ctx. It is called once per synchronization pass.
	FetchBranchHeads(ctx context.Context) ([]BranchHead, error)

	// BuildSourceBinding turns a head into the binding stored on its child.
	BuildSourceBinding(head BranchHead) job.SourceBinding
}

// Normalize drops heads with empty names, keeps the first head for each
// name and sorts the result by name.
func Normalize(heads []BranchHead) []BranchHead {
	seen := make(map[string]bool, len(heads))
	out := make([]BranchHead, 0, len(heads))
	for _, h := range heads {
		if h.Name == "" || seen[h.Name] {
			continue
		}
		seen[h.Name] = true
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Static reports a fixed list of branches.
type Static struct {
	Branches []string
}

// NewStatic creates a source for the given branch names.
func NewStatic(branches ...string) *Static {
	return &Static{Branches: branches}
}

func (s *Static) ID() string { return "static" }

func (s *Static) FetchBranchHeads(ctx context.Context) ([]BranchHead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	heads := make([]BranchHead, 0, len(s.Branches))
	for _, name := range s.Branches {
		heads = append(heads, BranchHead{Name: name})
	}
	return Normalize(heads), nil
}

func (s *Static) BuildSourceBinding(head BranchHead) job.SourceBinding {
	return job.SourceBinding{Type: "static", Branch: head.Name, Revision: head.Revision}
}

// HeadsFile reads the branch list from a YAML file on every fetch:
//
//   - name: main
//     revision: 1f2e3d
//   - name: feature/x
//
// A missing or unreadable file is a fetch failure. An empty file means the
// repository has no branches.
type HeadsFile struct {
	Path string
}

// NewHeadsFile creates a source backed by the file at path.
func NewHeadsFile(path string) *HeadsFile {
	return &HeadsFile{Path: path}
}

func (f *HeadsFile) ID() string { return "file:" + f.Path }

func (f *HeadsFile) FetchBranchHeads(ctx context.Context) ([]BranchHead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heads file %s: %w", f.Path, err)
	}

	var heads []BranchHead
	if err := yaml.Unmarshal(data, &heads); err != nil {
		return nil, fmt.Errorf("failed to parse heads file %s: %w", f.Path, err)
	}
	return Normalize(heads), nil
}

func (f *HeadsFile) BuildSourceBinding(head BranchHead) job.SourceBinding {
	return job.SourceBinding{Type: "file", URL: f.Path, Branch: head.Name, Revision: head.Revision}
}
