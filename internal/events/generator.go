package events

import (
	"sync"
	"time"

	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// Sink receives rendered events.
type Sink interface {
	Emit(Event)
}

// LogSink writes events to the structured log. Warnings are logged at warn
// level, everything else at info.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ev Event) {
	if ev.Type == EventTypeWarning {
		logging.Warn("events", "[%s] %s", ev.Reason, ev.Message)
		return
	}
	logging.Info("events", "[%s] %s", ev.Reason, ev.Message)
}

// Recorder keeps events in memory, newest last. The zero value is usable.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

// NewRecorder creates a recorder keeping at most limit events. A limit of
// zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy of the recorded events. If project is non-empty
// only that project's events are returned.
func (r *Recorder) Events(project string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if project == "" || ev.Project == project {
			out = append(out, ev)
		}
	}
	return out
}

// EventGenerator renders events and hands them to its sinks.
type EventGenerator struct {
	sinks     []Sink
	templates *MessageTemplateEngine
	now       func() time.Time
}

// NewEventGenerator creates a new EventGenerator delivering to sinks.
func NewEventGenerator(sinks ...Sink) *EventGenerator {
	return &EventGenerator{
		sinks:     sinks,
		templates: NewMessageTemplateEngine(),
		now:       time.Now,
	}
}

// ProjectEvent generates an event about a project as a whole.
func (g *EventGenerator) ProjectEvent(name string, reason EventReason, data EventData) {
	data.Project = name
	g.emit(reason, data)
}

// ChildEvent generates an event about one child of a project.
func (g *EventGenerator) ChildEvent(name, child string, reason EventReason, data EventData) {
	data.Project = name
	data.Child = child
	g.emit(reason, data)
}

// PassEvents generates the events describing one synchronization pass: one
// per changed child and a closing project event.
func (g *EventGenerator) PassEvents(r *project.Report) {
	if r == nil {
		return
	}
	switch {
	case r.Skipped != "":
		g.ProjectEvent(r.Project, ReasonProjectSyncSkipped, EventData{Error: r.Skipped})
		return
	case r.Error != "":
		g.ProjectEvent(r.Project, ReasonProjectSyncFailed, EventData{Error: r.Error})
		return
	}

	changed := 0
	for _, e := range r.Entries {
		reason, ok := entryReasons[e.Action]
		if !ok {
			continue
		}
		data := EventData{Branch: e.Branch}
		if e.Action == project.ActionFailed {
			data.Operation = e.Op
			data.Error = e.Message
		} else {
			changed++
		}
		g.ChildEvent(r.Project, e.Child, reason, data)
	}
	g.ProjectEvent(r.Project, ReasonProjectSynced, EventData{Count: changed, Duration: r.Duration()})
}

var entryReasons = map[project.Action]EventReason{
	project.ActionCreated:   ReasonChildCreated,
	project.ActionUpdated:   ReasonChildUpdated,
	project.ActionDeleted:   ReasonChildDeleted,
	project.ActionRetained:  ReasonChildRetained,
	project.ActionScheduled: ReasonChildScheduled,
	project.ActionFailed:    ReasonChildFailed,
}

func (g *EventGenerator) emit(reason EventReason, data EventData) {
	ev := Event{
		Time:    g.now(),
		Type:    getEventType(reason),
		Reason:  reason,
		Project: data.Project,
		Child:   data.Child,
		Message: g.templates.Render(reason, data),
	}

	logging.Debug("events", "Generating event: reason=%s, message=%s, type=%s",
		string(reason), ev.Message, ev.Type)

	for _, s := range g.sinks {
		s.Emit(ev)
	}
}
