package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/project"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates that config.yaml could not be loaded.
	ExitCodeConfig = 2
	// ExitCodeFetch indicates that a branch source could not be read.
	ExitCodeFetch = 3
)

// flags are shared by every subcommand.
var flags cli.CommandFlags

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

// newRootCmd builds the command tree. Tests build a fresh tree per run so
// flag values do not leak between executions.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multibranch",
		Short: "Keep one job per branch in sync with a template",
		Long: `multibranch maintains a set of generated jobs, one per live branch of a
source repository. Each project owns a template; every synchronization pass
lists the branches, creates jobs for new branches, removes (or retains) jobs
of vanished branches and propagates the template to every job.

Projects are declared in config.yaml inside the configuration directory
(default ~/.config/multibranch). Run 'multibranch serve' to synchronize in
the background or use the one-shot commands below.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		// Errors are printed once by execute, in the CLI's error format.
		SilenceErrors: true,
	}

	cli.RegisterCommonFlags(cmd, &flags)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEnableCmd(), newDisableCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newLogCmd())
	return cmd
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It is called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "multibranch version %s\n" .Version}}`)

	os.Exit(execute(rootCmd))
}

// execute runs root, prints a failure to its error stream and returns the
// exit code.
func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), cli.FormatError(err))
		return getExitCode(err)
	}
	return ExitCodeSuccess
}

// getExitCode maps an error to a semantic exit code for scripting.
func getExitCode(err error) int {
	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}
	if project.IsFetchError(err) {
		return ExitCodeFetch
	}
	return ExitCodeError
}
