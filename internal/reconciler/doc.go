// Package reconciler decides when multibranch projects are synchronized.
//
// # Overview
//
// Synchronization itself lives in the project package. This package turns
// triggers into passes: it watches for reasons to synchronize, queues one
// request per project and runs passes on a small worker pool.
//
// # Architecture
//
//   - Manager: central coordinator owning detectors, queue and workers
//   - Reconciler: runs one pass; ProjectReconciler drives project.Engine
//   - ChangeDetector: IntervalDetector ticks per project, FilesystemDetector
//     watches template directories and branch heads files with fsnotify
//   - ReconcileQueue: per-project coalescing queue with delayed requeue
//
// # Coalescing
//
// A project is never processed by two workers at once. Triggers arriving
// while a pass runs collapse into exactly one trailing pass. If a pass was
// started outside the manager (for example from the CLI) the reconciler
// does not wait for it and instead requeues after DefaultCoalesceDelay.
//
// # Retries
//
// A pass that fails to fetch branch heads is retried with exponential
// backoff, starting at InitialBackoff and capped at MaxBackoff, up to
// MaxRetries attempts. Per-child failures do not fail the pass.
//
// # Usage
//
//	rec := reconciler.NewProjectReconciler(engine, lookup, generator, nil)
//	manager := reconciler.NewManager(reconciler.ManagerConfig{WorkerCount: 4}, rec)
//	_ = manager.AddProject(reconciler.ProjectWatch{
//		Name:     "webapp",
//		Interval: 5 * time.Minute,
//		Dirs:     []string{store.TemplateDir("webapp")},
//	})
//	if err := manager.Start(ctx); err != nil {
//		return err
//	}
//	defer manager.Stop()
package reconciler
