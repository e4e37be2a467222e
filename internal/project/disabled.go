package project

import (
	"slices"
	"sync"
)

// DisabledSet remembers which children were disabled on their own when the
// parent was disabled, so that re-enabling the parent leaves them disabled.
// It is non-empty only while the parent is disabled.
type DisabledSet struct {
	mu    sync.RWMutex
	names []string
}

// NewDisabledSet creates a set holding names, in order, without duplicates.
func NewDisabledSet(names ...string) *DisabledSet {
	s := &DisabledSet{}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name if it is not present.
func (s *DisabledSet) Add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.names, name) {
		s.names = append(s.names, name)
	}
}

// Remove deletes name.
func (s *DisabledSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.names, name); i >= 0 {
		s.names = slices.Delete(s.names, i, i+1)
	}
}

// Contains reports whether name is in the set.
func (s *DisabledSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.names, name)
}

// Empty reports whether the set has no members.
func (s *DisabledSet) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names) == 0
}

// Names returns the members in insertion order.
func (s *DisabledSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Replace sets the members to names.
func (s *DisabledSet) Replace(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = s.names[:0]
	for _, n := range names {
		if !slices.Contains(s.names, n) {
			s.names = append(s.names, n)
		}
	}
}

// Clear removes every member.
func (s *DisabledSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = nil
}
