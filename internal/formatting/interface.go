// Package formatting renders projects, pass reports and reconciler status
// for the command line.
//
// The same views are rendered as rich tables (go-pretty), JSON or YAML so
// scripts can consume exactly what a human sees.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{string(FormatTable), string(FormatJSON), string(FormatYAML)}

// ParseOutputFormat converts a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (use one of: %s)", s, strings.Join(OutputFormats, ", "))
}

// Options configures the formatter behavior
type Options struct {
	Format  OutputFormat
	Quiet   bool // Suppress decorative elements
	NoColor bool
	// Output defaults to os.Stdout.
	Output io.Writer
}

func (o Options) writer() io.Writer {
	if o.Output == nil {
		return os.Stdout
	}
	return o.Output
}

// Formatter renders the views of this package.
type Formatter interface {
	FormatProjects(projects []ProjectView) error
	FormatProject(project ProjectView) error
	FormatReports(reports []ReportView) error
	FormatStatus(status StatusView) error

	// FormatData renders any value, e.g. a job configuration.
	FormatData(data interface{}) error
}

// NewFormatter creates the formatter selected by options.Format.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
