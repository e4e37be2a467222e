package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
	"github.com/giantswarm/multibranch/internal/formatting"
	"github.com/giantswarm/multibranch/internal/project"
)

func newSyncCmd() *cobra.Command {
	var (
		all            bool
		enableDisabled bool
	)
	cmd := &cobra.Command{
		Use:   "sync [project...]",
		Short: "Run one synchronization pass",
		Long: `Runs one synchronization pass per project and prints what changed.
Projects are synchronized concurrently. A pass that cannot read its
branch source changes nothing and makes the command fail; failures of
single children are reported but do not.`,
		Example: `  multibranch sync webapp
  multibranch sync --all -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cli.Open(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer session.Close()

			parents, err := session.Parents(args, all)
			if err != nil {
				return err
			}

			var reports []*project.Report
			syncErr := session.WithSpinner(fmt.Sprintf("Synchronizing %d projects...", len(parents)), func() error {
				var err error
				reports, err = session.Services().SyncProjects(cmd.Context(), parents, project.SyncOptions{EnableDisabled: enableDisabled})
				return err
			})

			f, err := session.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			views := make([]formatting.ReportView, 0, len(reports))
			failed := 0
			for _, r := range reports {
				if r == nil {
					continue
				}
				views = append(views, formatting.NewReportView(r))
				failed += r.Count(project.ActionFailed)
			}
			if err := f.FormatReports(views); err != nil {
				return err
			}
			if failed > 0 && flags.Interactive() {
				fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("%d child operations failed", failed)))
			}
			return syncErr
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Synchronize every configured project")
	cmd.Flags().BoolVar(&enableDisabled, "enable-disabled", false, "Re-enable children that were disabled by hand")
	return cmd
}
