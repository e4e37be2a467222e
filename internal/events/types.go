package events

import (
	"time"
)

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Project event reasons
const (
	// ReasonProjectSynced indicates a synchronization pass completed.
	ReasonProjectSynced EventReason = "ProjectSynced"

	// ReasonProjectSyncFailed indicates a synchronization pass was aborted,
	// e.g. because the branch source could not be fetched.
	ReasonProjectSyncFailed EventReason = "ProjectSyncFailed"

	// ReasonProjectSyncSkipped indicates a pass did not run.
	ReasonProjectSyncSkipped EventReason = "ProjectSyncSkipped"

	// ReasonProjectDisabled indicates a project and its children were disabled.
	ReasonProjectDisabled EventReason = "ProjectDisabled"

	// ReasonProjectEnabled indicates a project and its children were re-enabled.
	ReasonProjectEnabled EventReason = "ProjectEnabled"

	// ReasonProjectDeleted indicates a project and all its children were removed.
	ReasonProjectDeleted EventReason = "ProjectDeleted"

	// ReasonTemplateUpdated indicates the project template was replaced.
	ReasonTemplateUpdated EventReason = "TemplateUpdated"
)

// Child event reasons
const (
	ReasonChildCreated   EventReason = "ChildCreated"
	ReasonChildUpdated   EventReason = "ChildUpdated"
	ReasonChildDeleted   EventReason = "ChildDeleted"
	ReasonChildRetained  EventReason = "ChildRetained"
	ReasonChildScheduled EventReason = "ChildScheduled"
	ReasonChildFailed    EventReason = "ChildFailed"
)

// EventData holds contextual information for event message templating.
type EventData struct {
	// Project is the name of the parent project.
	Project string

	// Child is the encoded child name, empty for project events.
	Child string

	// Branch is the raw branch name.
	Branch string

	// Operation is the executor operation that failed, for ChildFailed.
	Operation string

	// Error contains error information for failure events.
	Error string

	// Duration is the wall time of a pass.
	Duration time.Duration

	// Count is the number of children affected.
	Count int
}

// Event is a rendered event as delivered to a Sink.
type Event struct {
	Time    time.Time
	Type    EventType
	Reason  EventReason
	Project string
	Child   string
	Message string
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonProjectSyncFailed,
		ReasonChildFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
