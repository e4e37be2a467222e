package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
	"github.com/giantswarm/multibranch/internal/naming"
	"github.com/giantswarm/multibranch/internal/project"
)

func newEnableCmd() *cobra.Command {
	return newToggleCmd(true)
}

func newDisableCmd() *cobra.Command {
	return newToggleCmd(false)
}

// newToggleCmd builds enable and disable, which only differ in direction.
func newToggleCmd(enable bool) *cobra.Command {
	verb, long := "disable", `Disables a project and every child. Children that were already
disabled are remembered and stay disabled when the project is enabled
again. Synchronization passes are skipped while a project is disabled.

With --child only that child is disabled.`
	if enable {
		verb, long = "enable", `Enables a project and every child except those that were disabled
before the project was. With --child only that child is enabled, which
is refused while the project is disabled.`
	}

	var child string
	cmd := &cobra.Command{
		Use:   verb + " <project>",
		Short: fmt.Sprintf("%s a project or one of its children", capitalize(verb)),
		Long:  long,
		Args:  cobra.ExactArgs(1),
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
				if err := session.Services().Engine.SetChildEnabled(cmd.Context(), p, name, enable); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Child %s of %s %sd", name, p.Name(), verb)))
				return nil
			}

			if err := session.Services().SetDisabled(cmd.Context(), p, !enable); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Project %s %sd", p.Name(), verb)))
			return nil
		},
	}
	cmd.Flags().StringVar(&child, "child", "", "Child or branch name")
	return cmd
}

// resolveChild accepts a child name or the branch it was created for.
func resolveChild(p *project.Parent, arg string) string {
	if p.Child(arg) != nil {
		return arg
	}
	return naming.Encode(arg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
