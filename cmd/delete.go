package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
)

func newDeleteCmd() *cobra.Command {
	var child string
	cmd := &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a project's children and state, or a single child",
		Long: `Deletes every child of a project together with its template, state and
sync log. The project stays in config.yaml; the next pass starts from
an empty template.

With --child only that child is deleted. A child whose branch still
exists is created again by the next pass.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cli.Open(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer session.Close()

			parents, err := session.Parents(args, false)
			if err != nil {
				return err
			}
			p := parents[0]

			if child != "" {
				name := resolveChild(p, child)
				if err := session.Services().DeleteChild(cmd.Context(), p, name); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted child %s of %s", name, p.Name())))
				return nil
			}

			n := len(p.Children())
			if err := session.Services().DeleteProject(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted project %s with %d children", p.Name(), n)))
			return nil
		},
	}
	cmd.Flags().StringVar(&child, "child", "", "Delete only this child (child or branch name)")
	return cmd
}
