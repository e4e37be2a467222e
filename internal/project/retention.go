package project

import (
	"fmt"
	"time"
)

// OrphanRecord tracks a child whose branch is gone.
type OrphanRecord struct {
	// Since is when the branch was first found missing.
	Since time.Time `yaml:"since"`
	// MissedPasses counts passes that did not report the branch.
	MissedPasses int `yaml:"missedPasses"`
}

// RetentionPolicy decides what happens to a child whose branch disappeared.
// It is asked once per candidate per pass, after the record has been
// updated for the current pass.
type RetentionPolicy interface {
	Name() string
	ShouldDelete(rec OrphanRecord, now time.Time) bool
}

// Immediate deletes orphans in the pass that finds them.
type Immediate struct{}

func (Immediate) Name() string { return "immediate" }

func (Immediate) ShouldDelete(OrphanRecord, time.Time) bool { return true }

// Grace keeps orphans for a number of passes or an amount of time,
// whichever bound is reached first. With both bounds zero orphans are
// kept until they are deleted explicitly.
type Grace struct {
	// MaxPasses is the number of passes an orphan survives.
	MaxPasses int
	// MaxAge is how long an orphan survives.
	MaxAge time.Duration
}

func (g Grace) Name() string { return "grace" }

func (g Grace) ShouldDelete(rec OrphanRecord, now time.Time) bool {
	if g.MaxPasses > 0 && rec.MissedPasses > g.MaxPasses {
		return true
	}
	if g.MaxAge > 0 && now.Sub(rec.Since) >= g.MaxAge {
		return true
	}
	return false
}

// NewRetentionPolicy builds a policy from its configuration name.
func NewRetentionPolicy(name string, maxPasses int, maxAge time.Duration) (RetentionPolicy, error) {
	switch name {
	case "", "immediate":
		return Immediate{}, nil
	case "grace":
		if maxPasses < 0 || maxAge < 0 {
			return nil, fmt.Errorf("grace retention bounds must not be negative")
		}
		return Grace{MaxPasses: maxPasses, MaxAge: maxAge}, nil
	default:
		return nil, fmt.Errorf("unknown retention policy %q", name)
	}
}
