package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/internal/cli"
	"github.com/giantswarm/multibranch/internal/formatting"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/store"
)

func newLogCmd() *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "log <project>",
		Short: "Show past synchronization passes",
		Long:  `Prints the sync log of a project, one entry per pass, oldest first.`,
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

			data, err := session.Services().Store.ReadLog(parents[0].Name())
			if errors.Is(err, store.ErrNotFound) {
				data = nil
			} else if err != nil {
				return err
			}

			reports, err := decodeSyncLog(data)
			if err != nil {
				return err
			}
			if tail > 0 && len(reports) > tail {
				reports = reports[len(reports)-tail:]
			}

			views := make([]formatting.ReportView, 0, len(reports))
			for _, r := range reports {
				views = append(views, formatting.NewReportView(r))
			}
			f, err := session.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return f.FormatReports(views)
		},
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", 10, "Number of passes to show, 0 for all")
	return cmd
}

// decodeSyncLog reads the YAML document stream written by the engine.
func decodeSyncLog(data []byte) ([]*project.Report, error) {
	var reports []*project.Report
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var r project.Report
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			return reports, nil
		}
		if err != nil {
			return reports, fmt.Errorf("corrupt sync log after %d entries: %w", len(reports), err)
		}
		reports = append(reports, &r)
	}
}
