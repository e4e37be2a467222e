package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/app"
	"github.com/giantswarm/multibranch/internal/formatting"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Synchronize every project in the background",
		Long: `Starts the reconcile manager. Every project is synchronized once at
startup and then:

  - every syncInterval (per project, default from config.yaml)
  - whenever its template file changes on disk
  - whenever its heads file changes (file sources)

Passes of one project never overlap; a trigger arriving during a pass
is retried shortly after. Failed passes are retried with exponential
backoff. Stop with Ctrl+C; passes in flight are allowed to finish and a
summary is printed.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.NewApplication(ctx, app.NewConfig(flags.ConfigPath, flags.LogLevel, false))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		return err
	}
	if flags.Quiet {
		return nil
	}

	opts, err := flags.FormatterOptions(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	services := application.Services()
	m := services.Reconciler
	return formatting.NewFormatter(opts).FormatStatus(
		formatting.NewStatusView(m.IsRunning(), m.GetQueueLength(), m.GetAllStatuses(), services.Metrics.GetSummary()))
}
