package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/multibranch/internal/cli"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Show or change the template of a project",
		Long: `The template is the job configuration copied to every child. It never
has a source and is always disabled; each child gets its own branch
binding. Changes reach the children in the next synchronization pass.

Fields of steps, parameters and the custom workspace may use Go template
syntax with sprig functions, e.g. {{ .Branch | replace "/" "-" }}.`,
	}
	cmd.AddCommand(newTemplateShowCmd(), newTemplateApplyCmd(), newTemplatePathCmd())
	return cmd
}

func newTemplateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project>",
		Short: "Print the template",
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
			f, err := session.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatData(parents[0].Template())
		},
	}
}

func newTemplateApplyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply <project> -f <file>",
		Short: "Replace the template",
		Long: `Replaces the template with a YAML document read from a file, or from
standard input with -f -. Unknown fields are rejected. name, displayName,
source and disabled are ignored.`,
		Example: `  multibranch template show webapp > tmpl.yaml
  $EDITOR tmpl.yaml
  multibranch template apply webapp -f tmpl.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			session, err := cli.Open(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer session.Close()

			parents, err := session.Parents(args, false)
			if err != nil {
				return err
			}
			if err := session.Services().UpdateTemplate(cmd.Context(), parents[0], data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Template of %s updated; run 'multibranch sync %s' to apply it", parents[0].Name(), parents[0].Name())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Template file, - for standard input")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTemplatePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <project>",
		Short: "Print the file holding the template",
		Long:  `Prints the path of the template file. serve picks up edits of this file on its own.`,
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
			fmt.Fprintln(cmd.OutOrStdout(), session.Services().Engine.TemplatePath(parents[0]))
			return nil
		},
	}
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}
