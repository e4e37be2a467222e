package formatting

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
	out     io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
		out:     options.writer(),
	}
}

func (f *JSONFormatter) FormatProjects(projects []ProjectView) error {
	if projects == nil {
		projects = []ProjectView{}
	}
	return f.FormatData(projects)
}

func (f *JSONFormatter) FormatProject(project ProjectView) error {
	return f.FormatData(project)
}

func (f *JSONFormatter) FormatReports(reports []ReportView) error {
	if reports == nil {
		reports = []ReportView{}
	}
	return f.FormatData(reports)
}

func (f *JSONFormatter) FormatStatus(status StatusView) error {
	return f.FormatData(status)
}

// FormatData writes data as JSON. Quiet mode writes it compact.
func (f *JSONFormatter) FormatData(data interface{}) error {
	if !f.options.Quiet {
		_, err := fmt.Fprintln(f.out, PrettyJSON(data))
		return err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.out, string(b))
	return err
}
