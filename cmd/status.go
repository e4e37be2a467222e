package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
	"github.com/giantswarm/multibranch/internal/formatting"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [project]",
		Short: "Show projects and their children",
		Long: `Without arguments, lists every configured project. With a project
name, lists its children with their branch, state, pending builds and,
for retained children, how long their branch has been gone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cli.Open(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer session.Close()

			f, err := session.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			parents, err := session.Parents(args, true)
			if err != nil {
				return err
			}
			views := make([]formatting.ProjectView, 0, len(parents))
			for _, p := range parents {
				views = append(views, formatting.NewProjectView(p, session.PendingBuilds))
			}

			if len(args) == 1 {
				return f.FormatProject(views[0])
			}
			return f.FormatProjects(views)
		},
	}
}
