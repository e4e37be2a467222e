package events

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageTemplateEngine provides message generation for events.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonProjectSynced] = "Project {{.Project}} synchronized{{if .Count}}, {{.Count}} children changed{{end}}{{if .Duration}} in {{.Duration}}{{end}}"
	e.templates[ReasonProjectSyncFailed] = "Project {{.Project}} synchronization aborted{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonProjectSyncSkipped] = "Project {{.Project}} synchronization skipped{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonProjectDisabled] = "Project {{.Project}} disabled{{if .Count}} together with {{.Count}} children{{end}}"
	e.templates[ReasonProjectEnabled] = "Project {{.Project}} enabled{{if .Count}} together with {{.Count}} children{{end}}"
	e.templates[ReasonProjectDeleted] = "Project {{.Project}} deleted"
	e.templates[ReasonTemplateUpdated] = "Project {{.Project}} template updated"

	e.templates[ReasonChildCreated] = "Child {{.Child}} created for branch {{.Branch}}"
	e.templates[ReasonChildUpdated] = "Child {{.Child}} reconfigured from template"
	e.templates[ReasonChildDeleted] = "Child {{.Child}} deleted"
	e.templates[ReasonChildRetained] = "Child {{.Child}} retained after its branch disappeared"
	e.templates[ReasonChildScheduled] = "Child {{.Child}} scheduled for build"
	e.templates[ReasonChildFailed] = "Child {{.Child}} {{.Operation}} failed{{if .Error}}: {{.Error}}{{end}}"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, exists := e.templates[reason]
	if !exists {
		if data.Child != "" {
			return fmt.Sprintf("Event: %s for %s/%s", string(reason), data.Project, data.Child)
		}
		return fmt.Sprintf("Event: %s for %s", string(reason), data.Project)
	}

	return e.renderTemplate(template, data)
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.templates[reason] = template
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	template, exists := e.templates[reason]
	return template, exists
}

// renderTemplate substitutes EventData fields. Conditionals are resolved
// first so an empty value never leaves a dangling prefix behind.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	result := template
	result = renderConditional(result, "{{if .Error}}", data.Error != "")
	result = renderConditional(result, "{{if .Duration}}", data.Duration > 0)
	result = renderConditional(result, "{{if .Count}}", data.Count > 0)

	duration := ""
	if data.Duration > 0 {
		duration = data.Duration.String()
	}
	r := strings.NewReplacer(
		"{{.Project}}", data.Project,
		"{{.Child}}", data.Child,
		"{{.Branch}}", data.Branch,
		"{{.Operation}}", data.Operation,
		"{{.Error}}", data.Error,
		"{{.Duration}}", duration,
		"{{.Count}}", strconv.Itoa(data.Count),
	)
	return r.Replace(result)
}

// renderConditional resolves every {{if .X}}...{{end}} block for one marker.
func renderConditional(template, startMarker string, condition bool) string {
	const endMarker = "{{end}}"
	for {
		startIndex := strings.Index(template, startMarker)
		if startIndex == -1 {
			return template
		}
		endIndex := strings.Index(template[startIndex:], endMarker)
		if endIndex == -1 {
			return template
		}
		endIndex += startIndex

		before := template[:startIndex]
		after := template[endIndex+len(endMarker):]
		if condition {
			template = before + template[startIndex+len(startMarker):endIndex] + after
		} else {
			template = before + after
		}
	}
}
