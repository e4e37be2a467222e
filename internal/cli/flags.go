package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/formatting"
)

// DefaultCommandLogLevel keeps one-shot commands quiet unless asked.
const DefaultCommandLogLevel = "warn"

// CommandFlags holds the flag values shared by every command.
type CommandFlags struct {
	// ConfigPath is the directory containing config.yaml
	ConfigPath string
	// LogLevel overrides logging.level from config.yaml
	LogLevel string
	// OutputFormat specifies the desired output format (table, json, yaml)
	OutputFormat string
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
	// NoColor disables colored table output
	NoColor bool
}

// RegisterCommonFlags registers the persistent flags on cmd, normally the
// root command.
//
// The registered flags are:
//   - --config-path: Configuration directory
//   - --log-level: Log level (debug, info, warn, error)
//   - --output/-o: Output format (table, json, yaml), default: "table"
//   - --quiet/-q: Suppress non-essential output
//   - --no-color: Disable colors
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error (default from config.yaml)")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")
}

// FormatterOptions converts the flags into formatting options writing to out.
func (f *CommandFlags) FormatterOptions(out io.Writer) (formatting.Options, error) {
	format, err := formatting.ParseOutputFormat(f.OutputFormat)
	if err != nil {
		return formatting.Options{}, err
	}
	return formatting.Options{
		Format:  format,
		Quiet:   f.Quiet,
		NoColor: f.NoColor,
		Output:  out,
	}, nil
}

// Interactive reports whether progress indicators should be shown. They
// would corrupt structured output.
func (f *CommandFlags) Interactive() bool {
	return !f.Quiet && (f.OutputFormat == "" || f.OutputFormat == string(formatting.FormatTable))
}
