// Package events reports what the synchronization engine does.
//
// It has two halves:
//
//   - Dispatcher: fire-and-forget fan-out of topology notifications. The
//     engine calls TopologyChanged after every pass that changed a project's
//     children. Each listener (the dependency topology, the executor's build
//     bookkeeping) has a mailbox drained by one goroutine at a time, so it
//     sees notifications in order and never an older topology after a newer
//     one.
//   - EventGenerator: renders human readable events from pass reports and
//     lifecycle operations through MessageTemplateEngine and hands them to
//     sinks such as LogSink or an in-memory Recorder.
//
// Usage:
//
//	recorder := events.NewRecorder(500)
//	generator := events.NewEventGenerator(events.LogSink{}, recorder)
//	report, _ := engine.Sync(ctx, parent, project.SyncOptions{})
//	generator.PassEvents(report)
package events
