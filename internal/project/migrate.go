package project

import (
	"context"

	"go.uber.org/multierr"

	"github.com/giantswarm/multibranch/internal/naming"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// currentSchemaVersion is written to state.yaml. Version 0 predates
// encoded child names in the disabled set.
const currentSchemaVersion = 1

// migrateState upgrades persisted parent state to the current schema. It
// needs the loaded children and reports whether the state changed.
func migrateState(st *parentState, children *Registry) bool {
	changed := false
	if st.SchemaVersion < 1 {
		st.DisabledSubProjects = migrateDisabledNames(st.DisabledSubProjects, children)
		changed = true
	}
	if st.SchemaVersion != currentSchemaVersion {
		st.SchemaVersion = currentSchemaVersion
		changed = true
	}
	return changed
}

// migrateDisabledNames maps names recorded before encoding was introduced
// to encoded child names. Names that match no child are dropped.
func migrateDisabledNames(names []string, children *Registry) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		switch {
		case children.Has(name):
			out = append(out, name)
		case children.Has(naming.Encode(name)):
			out = append(out, naming.Encode(name))
		default:
			logging.Debug("Migration", "Dropping unknown disabled child %q", name)
		}
	}
	return out
}

// repairChildren fixes children on every load: missing display names are
// derived from the encoded name, and children of a disabled parent are
// forced disabled in case they were enabled while the service was down.
func (e *Engine) repairChildren(ctx context.Context, p *Parent) error {
	var errs error
	for _, child := range p.children.List() {
		if child.DisplayName == "" {
			child.DisplayName = naming.Decode(child.Name)
			if err := e.exec.UpdateChildConfig(ctx, child, child.Config); err != nil {
				errs = multierr.Append(errs, &ChildError{Project: p.name, Child: child.Name, Op: OpUpdate, Err: err})
				continue
			}
			p.children.Put(child)
		}

		if p.disabled.Load() && !child.Disabled {
			logging.Warn("Engine", "Child %s of disabled project %s was enabled; disabling", child.Name, p.name)
			if err := e.exec.SetEnabled(ctx, child, false); err != nil {
				errs = multierr.Append(errs, &ChildError{Project: p.name, Child: child.Name, Op: OpDisable, Err: err})
				continue
			}
			p.children.Put(child)
		}
	}
	return errs
}

// pruneOrphans drops records of children that no longer exist.
func pruneOrphans(records map[string]OrphanRecord, children *Registry) map[string]OrphanRecord {
	out := make(map[string]OrphanRecord, len(records))
	for name, rec := range records {
		if children.Has(name) {
			out[name] = rec
		}
	}
	return out
}
