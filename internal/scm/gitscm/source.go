// Package gitscm reports branch heads of a git repository using go-git.
//
// A remote repository is queried with the equivalent of `git ls-remote`;
// nothing is cloned. A local repository is opened in place and its
// refs/heads are listed.
package gitscm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/pkg/logging"
)

const remoteName = "origin"

// DefaultListTimeout bounds one shared listing of a remote.
const DefaultListTimeout = 2 * time.Minute

// remoteGroup deduplicates concurrent listings of the same URL, which
// happen when several projects track one repository. A shared listing
// runs detached from its callers; each caller stops waiting when its own
// context ends.
var remoteGroup singleflight.Group

// Source lists branches of one repository. Exactly one of URL and Path is set.
type Source struct {
	URL  string
	Path string

	// ListTimeout bounds a listing of URL; DefaultListTimeout when zero.
	ListTimeout time.Duration
}

// NewRemote creates a source for a remote repository URL.
func NewRemote(url string) *Source {
	return &Source{URL: url}
}

// NewLocal creates a source for a repository on the local filesystem.
func NewLocal(path string) *Source {
	return &Source{Path: path}
}

func (s *Source) ID() string {
	if s.URL != "" {
		return "git:" + s.URL
	}
	return "git:" + s.Path
}

func (s *Source) FetchBranchHeads(ctx context.Context) ([]scm.BranchHead, error) {
	var (
		refs []*plumbing.Reference
		err  error
	)
	switch {
	case s.URL != "":
		refs, err = s.listRemote(ctx)
	case s.Path != "":
		refs, err = s.listLocal(ctx)
	default:
		return nil, errors.New("git source has neither url nor path")
	}
	if err != nil {
		return nil, err
	}

	heads := make([]scm.BranchHead, 0, len(refs))
	for _, ref := range refs {
		if !ref.Name().IsBranch() || ref.Type() != plumbing.HashReference {
			continue
		}
		heads = append(heads, scm.BranchHead{
			Name:     ref.Name().Short(),
			Revision: ref.Hash().String(),
		})
	}

	logging.Debug("GitSource", "Listed %d branches from %s", len(heads), s.ID())
	return scm.Normalize(heads), nil
}

func (s *Source) BuildSourceBinding(head scm.BranchHead) job.SourceBinding {
	url := s.URL
	if url == "" {
		url = s.Path
	}
	return job.SourceBinding{
		Type:     "git",
		URL:      url,
		Branch:   head.Name,
		Revision: head.Revision,
	}
}

func (s *Source) listRemote(ctx context.Context) ([]*plumbing.Reference, error) {
	timeout := s.ListTimeout
	if timeout <= 0 {
		timeout = DefaultListTimeout
	}

	results := remoteGroup.DoChan(s.URL, func() (interface{}, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
			Name: remoteName,
			URLs: []string{s.URL},
		})
		return remote.ListContext(listCtx, &git.ListOptions{})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to list remote %s: %w", s.URL, res.Err)
		}
		if res.Shared {
			logging.Debug("GitSource", "Shared listing of %s with a concurrent fetch", s.URL)
		}
		return res.Val.([]*plumbing.Reference), nil
	}
}

func (s *Source) listLocal(ctx context.Context) ([]*plumbing.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpen(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", s.Path, err)
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches of %s: %w", s.Path, err)
	}
	defer iter.Close()

	var refs []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
