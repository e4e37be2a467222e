package project

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/giantswarm/multibranch/internal/executor"
	"github.com/giantswarm/multibranch/internal/store"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// Load builds a parent from spec and its persisted state, creating the
// template and state on first use.
//
// Unreadable children are skipped and reported as ConfigCorruptionErrors in
// the returned error; the parent is still returned in that case. Any other
// error leaves the parent nil.
func (e *Engine) Load(ctx context.Context, spec ParentSpec) (*Parent, error) {
	if spec.Name == "" {
		return nil, errors.New("project name is required")
	}
	if spec.Kind == nil {
		return nil, fmt.Errorf("project %s: job kind is required", spec.Name)
	}
	if spec.Retention == nil {
		spec.Retention = Immediate{}
	}
	if spec.Settings.FetchTimeout <= 0 {
		spec.Settings.FetchTimeout = DefaultFetchTimeout
	}
	if spec.Settings.SyncInterval <= 0 {
		spec.Settings.SyncInterval = DefaultSyncInterval
	}

	p := &Parent{
		name:        spec.Name,
		kind:        spec.Kind,
		settings:    spec.Settings,
		retention:   spec.Retention,
		source:      spec.Source,
		template:    newTemplateStore(spec.Name, spec.Kind, e.store),
		children:    NewRegistry(),
		disabledSet: NewDisabledSet(),
		orphans:     make(map[string]OrphanRecord),
	}

	unlock, err := e.lock(ctx, p)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, corrupt, err := e.refresh(ctx, p)
	if err != nil {
		return nil, err
	}

	logging.Info("Engine", "Loaded project %s with %d children (disabled=%t)", p.name, p.children.Len(), p.disabled.Load())
	if corrupt != nil {
		logging.Warn("Engine", "Project %s has unreadable children: %v", p.name, corrupt)
	}
	return p, corrupt
}

// lock takes the in-process lock of p and then its lock file in the store,
// which every process sharing the state directory takes as well. The
// returned func releases both.
func (e *Engine) lock(ctx context.Context, p *Parent) (func(), error) {
	p.mu.Lock()
	fl, err := e.store.LockProject(ctx, p.name)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	return func() { e.unlock(p, fl) }, nil
}

// tryLock is lock without waiting. A held lock, in this process or another
// one, is reported as a *ConcurrencyError.
func (e *Engine) tryLock(p *Parent) (func(), error) {
	if !p.mu.TryLock() {
		return nil, &ConcurrencyError{Project: p.name}
	}
	fl, ok, err := e.store.TryLockProject(p.name)
	if err != nil || !ok {
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, &ConcurrencyError{Project: p.name}
	}
	return func() { e.unlock(p, fl) }, nil
}

func (e *Engine) unlock(p *Parent, fl *store.ProjectLock) {
	if err := fl.Unlock(); err != nil {
		logging.Warn("Engine", "%v", err)
	}
	p.mu.Unlock()
}

// refresh replaces the in-memory view of p with what the store holds: the
// template, the parent state and the children. Another process may have
// changed any of them since p was last locked. Migrations and repairs are
// applied and persisted on the way. Callers hold both locks of p.
//
// It reports whether the template changed. Unreadable children are skipped
// and returned as ConfigCorruptionErrors in corrupt.
func (e *Engine) refresh(ctx context.Context, p *Parent) (templateChanged bool, corrupt error, err error) {
	templateChanged, err = p.template.Reload()
	if err != nil {
		return false, nil, err
	}

	var st parentState
	stateChanged := false
	var decodeErr *store.DecodeError
	switch err := e.store.ReadState(p.name, &st); {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		st = parentState{SchemaVersion: currentSchemaVersion}
		stateChanged = true
	case errors.As(err, &decodeErr):
		return false, nil, &ConfigCorruptionError{Project: p.name, Path: decodeErr.Path, Err: decodeErr.Err}
	default:
		return false, nil, fmt.Errorf("failed to load state of %s: %w", p.name, err)
	}

	children, loadErr := e.exec.LoadChildren(ctx, p.name)
	for _, err := range multierr.Errors(loadErr) {
		var le *executor.LoadError
		if !errors.As(err, &le) {
			return false, nil, fmt.Errorf("failed to load children of %s: %w", p.name, loadErr)
		}
		corrupt = multierr.Append(corrupt, &ConfigCorruptionError{Project: p.name, Path: le.Path, Err: le.Err})
	}
	p.children.Replace(children)

	if migrateState(&st, p.children) {
		stateChanged = true
	}
	p.disabled.Store(st.Disabled)
	p.disabledSet.Replace(st.DisabledSubProjects)

	orphans := pruneOrphans(st.Orphans, p.children)
	if len(orphans) != len(st.Orphans) {
		stateChanged = true
	}
	p.orphanMu.Lock()
	p.orphans = orphans
	p.orphanMu.Unlock()

	if !p.disabled.Load() && !p.disabledSet.Empty() {
		// Only a disabled parent remembers disabled children.
		p.disabledSet.Clear()
		stateChanged = true
	}

	if err := e.repairChildren(ctx, p); err != nil {
		logging.Warn("Engine", "Repairs of %s incomplete: %v", p.name, err)
	}

	if stateChanged {
		if err := e.store.WriteState(p.name, p.state()); err != nil {
			return false, nil, fmt.Errorf("failed to persist state of %s: %w", p.name, err)
		}
	}
	return templateChanged, corrupt, nil
}

// SetDisabled disables or enables p and cascades to its children.
//
// Disabling remembers which children were already disabled, unless a
// previous disable already recorded them, and then disables every child.
// Enabling re-enables every child not remembered and forgets the record.
// The parent state is persisted before returning. Per-child failures are
// combined into the returned error and do not stop the cascade.
func (e *Engine) SetDisabled(ctx context.Context, p *Parent, want bool) error {
	unlock, err := e.lockFresh(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	if p.disabled.Load() == want {
		return nil
	}

	var errs error
	children := p.children.List()

	if want {
		if p.disabledSet.Empty() {
			for _, child := range children {
				if child.Disabled {
					p.disabledSet.Add(child.Name)
				}
			}
		}
		for _, child := range children {
			if child.Disabled {
				continue
			}
			if err := e.exec.SetEnabled(ctx, child, false); err != nil {
				errs = multierr.Append(errs, &ChildError{Project: p.name, Child: child.Name, Op: OpDisable, Err: err})
				continue
			}
			p.children.Put(child)
		}
	} else {
		for _, child := range children {
			if !child.Disabled || p.disabledSet.Contains(child.Name) {
				continue
			}
			if err := e.exec.SetEnabled(ctx, child, true); err != nil {
				errs = multierr.Append(errs, &ChildError{Project: p.name, Child: child.Name, Op: OpEnable, Err: err})
				continue
			}
			p.children.Put(child)
		}
		p.disabledSet.Clear()
	}

	p.disabled.Store(want)
	if err := e.store.WriteState(p.name, p.state()); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to persist state of %s: %w", p.name, err))
	}

	logging.Info("Engine", "Project %s disabled=%t (%d children remembered as disabled)", p.name, want, len(p.disabledSet.Names()))
	e.notify(p)
	return errs
}

// SetChildEnabled enables or disables one child. Enabling is refused while
// the parent is disabled; disabling is then a no-op since every child is
// already disabled.
func (e *Engine) SetChildEnabled(ctx context.Context, p *Parent, name string, enabled bool) error {
	unlock, err := e.lockFresh(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	child := p.children.Get(name)
	if child == nil {
		return fmt.Errorf("%s/%s: %w", p.name, name, ErrChildNotFound)
	}

	if p.disabled.Load() {
		if enabled {
			return fmt.Errorf("cannot enable %s: %w", name, ErrParentDisabled)
		}
		return nil
	}

	if child.Disabled == !enabled {
		return nil
	}
	op := OpEnable
	if !enabled {
		op = OpDisable
	}
	if err := e.exec.SetEnabled(ctx, child, enabled); err != nil {
		return &ChildError{Project: p.name, Child: name, Op: op, Err: err}
	}
	p.children.Put(child)
	return nil
}

// DeleteChild deletes one child explicitly, whether or not its branch
// still exists. A child whose branch exists is recreated by the next pass.
func (e *Engine) DeleteChild(ctx context.Context, p *Parent, name string) error {
	unlock, err := e.lockFresh(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	child := p.children.Get(name)
	if child == nil {
		return fmt.Errorf("%s/%s: %w", p.name, name, ErrChildNotFound)
	}
	if err := e.exec.DeleteChild(ctx, child); err != nil {
		return &ChildError{Project: p.name, Child: name, Op: OpDelete, Err: err}
	}
	p.children.Remove(name)
	p.clearOrphan(name)
	p.disabledSet.Remove(name)

	if err := e.store.WriteState(p.name, p.state()); err != nil {
		return fmt.Errorf("failed to persist state of %s: %w", p.name, err)
	}
	logging.Info("Engine", "Deleted child %s of %s", name, p.name)
	e.notify(p)
	return nil
}

// DeleteParent deletes every child and then everything stored for p. If a
// child cannot be deleted the parent is kept and the failures are returned.
func (e *Engine) DeleteParent(ctx context.Context, p *Parent) error {
	unlock, err := e.lockFresh(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	var errs error
	for _, child := range p.children.List() {
		if err := e.exec.DeleteChild(ctx, child); err != nil {
			errs = multierr.Append(errs, &ChildError{Project: p.name, Child: child.Name, Op: OpDelete, Err: err})
			continue
		}
		p.children.Remove(child.Name)
		p.clearOrphan(child.Name)
	}
	if errs != nil {
		return errs
	}

	if err := e.store.RemoveProject(p.name); err != nil {
		return err
	}
	logging.Info("Engine", "Deleted project %s", p.name)
	e.notify(p)
	return nil
}

// UpdateTemplate applies a YAML submission to the template of p. Children
// pick it up in the next pass.
func (e *Engine) UpdateTemplate(ctx context.Context, p *Parent, data []byte) error {
	unlock, err := e.lock(ctx, p)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = p.template.Update(data)
	return err
}

// lockFresh locks p and refreshes it from the store so that a cascade acts
// on the current children.
func (e *Engine) lockFresh(ctx context.Context, p *Parent) (func(), error) {
	unlock, err := e.lock(ctx, p)
	if err != nil {
		return nil, err
	}
	_, corrupt, err := e.refresh(ctx, p)
	if err != nil {
		unlock()
		return nil, err
	}
	if corrupt != nil {
		logging.Warn("Engine", "Project %s has unreadable children: %v", p.name, corrupt)
	}
	return unlock, nil
}

// TemplatePath returns the file holding the template of p.
func (e *Engine) TemplatePath(p *Parent) string {
	return templatePath(e.store, p.name)
}
