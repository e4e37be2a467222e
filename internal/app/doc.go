// Package app wires the multibranch services together.
//
// Bootstrap loads config.yaml (see package config), initializes pkg/logging
// and builds Services:
//
//   - store.Store persists templates, children and project state
//   - executor.Local applies child operations and queues builds
//   - events.Dispatcher fans topology changes out to dependency.Topology
//     and the executor's build queue
//   - events.EventGenerator turns pass reports into log lines and an
//     in-memory history
//   - project.Engine runs passes and cascades
//   - reconciler.Manager drives periodic and change-triggered passes
//
// Projects are loaded concurrently. A project with unreadable children is
// loaded anyway and the problem is logged; a project that cannot be loaded
// at all fails the bootstrap.
//
// One-shot commands use Services directly. The serve command calls
// Application.Run, which starts the reconcile manager and blocks until
// the process is interrupted.
package app
