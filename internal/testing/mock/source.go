package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/giantswarm/multibranch/internal/job"
	"github.com/giantswarm/multibranch/internal/scm"
)

// RepositoryURL is the URL bound into children created from a Source.
const RepositoryURL = "https://example.com/repo.git"

// Source is a branch source whose heads and failures are set by the test.
// It counts fetches and can be made to block until the fetch context ends.
type Source struct {
	mu    sync.Mutex
	heads []scm.BranchHead
	err   error
	block bool
	calls int
}

// NewSource returns a source listing branches with revisions rev-0, rev-1...
func NewSource(branches ...string) *Source {
	s := &Source{}
	s.SetBranches(branches...)
	return s
}

func (s *Source) SetBranches(branches ...string) {
	heads := make([]scm.BranchHead, 0, len(branches))
	for i, b := range branches {
		heads = append(heads, scm.BranchHead{Name: b, Revision: fmt.Sprintf("rev-%d", i)})
	}
	s.SetHeads(heads...)
}

func (s *Source) SetHeads(heads ...scm.BranchHead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads = heads
}

// SetError makes every following fetch fail with err. nil clears it.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Block makes fetches wait for their context to end.
func (s *Source) Block(block bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
}

// Calls returns the number of fetches so far.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Source) ID() string { return "mock" }

func (s *Source) FetchBranchHeads(ctx context.Context) ([]scm.BranchHead, error) {
	s.mu.Lock()
	s.calls++
	block, err := s.block, s.err
	heads := append([]scm.BranchHead(nil), s.heads...)
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return heads, nil
}

func (s *Source) BuildSourceBinding(head scm.BranchHead) job.SourceBinding {
	return job.SourceBinding{Type: "git", URL: RepositoryURL, Branch: head.Name, Revision: head.Revision}
}

var _ scm.Source = (*Source)(nil)
