// Package cli holds the helpers shared by the multibranch commands: the
// common flags, opening the application for a one-shot command, progress
// spinners and message formatting.
//
// Commands follow one shape:
//
//	func runSync(cmd *cobra.Command, args []string) error {
//		session, err := cli.Open(cmd.Context(), &flags)
//		if err != nil {
//			return err
//		}
//		defer session.Close()
//
//		var reports []*project.Report
//		err = session.WithSpinner("Synchronizing...", func() error { ... })
//		...
//		return session.Formatter(cmd.OutOrStdout()).FormatReports(views)
//	}
//
// Logging defaults to warnings only so that command output stays readable;
// --log-level raises it.
package cli
