package formatting

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
	out     io.Writer
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
		out:     options.writer(),
	}
}

func (f *YAMLFormatter) FormatProjects(projects []ProjectView) error {
	if projects == nil {
		projects = []ProjectView{}
	}
	return f.FormatData(projects)
}

func (f *YAMLFormatter) FormatProject(project ProjectView) error {
	return f.FormatData(project)
}

func (f *YAMLFormatter) FormatReports(reports []ReportView) error {
	if reports == nil {
		reports = []ReportView{}
	}
	return f.FormatData(reports)
}

func (f *YAMLFormatter) FormatStatus(status StatusView) error {
	return f.FormatData(status)
}

func (f *YAMLFormatter) FormatData(data interface{}) error {
	enc := yaml.NewEncoder(f.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	return enc.Close()
}
