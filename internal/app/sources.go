package app

import (
	"fmt"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/internal/scm/gitscm"
)

// NewSource creates the branch source described by cfg. A project without a
// source yields nil.
func NewSource(cfg config.SourceConfig) (scm.Source, error) {
	switch cfg.Type {
	case "", config.SourceTypeNone:
		return nil, nil
	case config.SourceTypeStatic:
		return scm.NewStatic(cfg.Branches...), nil
	case config.SourceTypeFile:
		return scm.NewHeadsFile(cfg.HeadsFile), nil
	case config.SourceTypeGit:
		if cfg.URL != "" {
			return gitscm.NewRemote(cfg.URL), nil
		}
		return gitscm.NewLocal(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

// ParentSpec converts a project declaration into what the engine loads.
// pc must already carry its effective values.
func ParentSpec(pc config.ProjectConfig) (project.ParentSpec, error) {
	kind, err := job.LookupKind(pc.Kind)
	if err != nil {
		return project.ParentSpec{}, err
	}
	retention, err := project.NewRetentionPolicy(pc.Retention.Policy, pc.Retention.MaxPasses, pc.Retention.MaxAge)
	if err != nil {
		return project.ParentSpec{}, err
	}
	src, err := NewSource(pc.Source)
	if err != nil {
		return project.ParentSpec{}, err
	}

	return project.ParentSpec{
		Name:      pc.Name,
		Kind:      kind,
		Source:    src,
		Retention: retention,
		Settings: project.Settings{
			SuppressNewBranchBuilds: pc.SuppressNewBranchBuilds,
			FetchTimeout:            pc.FetchTimeout,
			SyncInterval:            pc.SyncInterval,
		},
	}, nil
}
