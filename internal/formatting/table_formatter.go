package formatting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	pkgstrings "github.com/giantswarm/multibranch/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
	out     io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
		out:     options.writer(),
	}
}

// FormatProjects renders one row per project.
func (f *TableFormatter) FormatProjects(projects []ProjectView) error {
	if len(projects) == 0 {
		f.formatEmptyMessage("📋", "No projects configured")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"Project", "Kind", "Source", "Status", "Children", "Orphans", "Last Pass"})
	for _, p := range projects {
		orphans := 0
		for _, c := range p.Children {
			if c.Orphan {
				orphans++
			}
		}
		t.AppendRow(table.Row{
			f.paint(text.FgHiCyan, p.Name),
			p.Kind,
			pkgstrings.Truncate(p.Source, pkgstrings.DefaultCellMaxLen),
			f.projectStatus(p.Disabled),
			len(p.Children),
			orphans,
			f.lastPass(p.LastPass),
		})
	}
	t.Render()
	f.formatTotal(len(projects), "projects")
	return nil
}

// FormatProject renders the children of a single project.
func (f *TableFormatter) FormatProject(p ProjectView) error {
	if !f.options.Quiet {
		fmt.Fprintf(f.out, "%s %s (%s, source %s, retention %s) %s\n",
			f.paint(text.FgHiBlue, "Project:"),
			f.paint(text.FgHiWhite, p.Name),
			p.Kind, p.Source, p.Retention,
			f.projectStatus(p.Disabled))
	}

	if len(p.Children) == 0 {
		f.formatEmptyMessage("📋", "No children")
	} else {
		t := f.createTable()
		t.AppendHeader(table.Row{"Child", "Branch", "Status", "Revision", "Pending", "Missing Since"})
		for _, c := range p.Children {
			missing := "-"
			if c.Orphan {
				missing = fmt.Sprintf("%s (%d passes)", formatAge(c.MissingSince), c.MissedPasses)
			}
			t.AppendRow(table.Row{
				c.Name,
				pkgstrings.Truncate(c.Branch, pkgstrings.DefaultCellMaxLen),
				f.childStatus(c),
				shortRevision(c.Revision),
				c.PendingBuilds,
				missing,
			})
		}
		t.Render()
	}

	if p.LastPass != nil && !f.options.Quiet {
		fmt.Fprintf(f.out, "%s %s\n", f.paint(text.FgHiBlue, "Last pass:"), f.lastPass(p.LastPass))
	}
	return nil
}

// FormatReports renders the changes made by each pass.
func (f *TableFormatter) FormatReports(reports []ReportView) error {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(f.out)
		}
		f.formatReport(r)
	}
	return nil
}

func (f *TableFormatter) formatReport(r ReportView) {
	fmt.Fprintf(f.out, "%s %s %s\n", f.outcome(r.Outcome()), f.paint(text.FgHiWhite, r.Project), f.passSummary(r))

	if r.Error != "" {
		fmt.Fprintf(f.out, "  %s\n", f.paint(text.FgRed, r.Error))
		return
	}
	if r.Skipped != "" {
		fmt.Fprintf(f.out, "  %s\n", r.Skipped)
		return
	}
	if len(r.Entries) == 0 || f.options.Quiet {
		return
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"Child", "Branch", "Action", "Message"})
	for _, e := range r.Entries {
		t.AppendRow(table.Row{
			e.Child,
			e.Branch,
			f.action(string(e.Action)),
			pkgstrings.Truncate(e.Message, pkgstrings.DefaultCellMaxLen),
		})
	}
	t.Render()
}

// FormatStatus renders the background reconciler state.
func (f *TableFormatter) FormatStatus(s StatusView) error {
	state := f.paint(text.FgYellow, "stopped")
	if s.Running {
		state = f.paint(text.FgGreen, "running")
	}
	fmt.Fprintf(f.out, "%s %s, %d queued, %d attempts, %.1f%% failed\n",
		f.paint(text.FgHiBlue, "Reconciler:"), state, s.QueueLength, s.TotalAttempts, s.FailureRate*100)

	if len(s.Projects) == 0 {
		f.formatEmptyMessage("📋", "No projects registered")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"Project", "State", "Last Synced", "Retries", "Passes", "Coalesced", "Last Error"})
	for _, p := range s.Projects {
		lastSynced := "-"
		if p.LastSynced != nil {
			lastSynced = formatAge(*p.LastSynced)
		}
		passes, coalesced := int64(0), int64(0)
		if p.Metrics != nil {
			passes, coalesced = p.Metrics.Successes+p.Metrics.Failures, p.Metrics.Coalesced
		}
		t.AppendRow(table.Row{
			p.Project,
			f.reconcileState(p.State),
			lastSynced,
			p.RetryCount,
			passes,
			coalesced,
			pkgstrings.Truncate(p.LastError, pkgstrings.DefaultCellMaxLen),
		})
	}
	t.Render()
	return nil
}

// FormatData formats generic data as a key/value table.
func (f *TableFormatter) FormatData(data interface{}) error {
	switch d := data.(type) {
	case map[string]interface{}:
		t := f.createTable()
		t.AppendHeader(table.Row{"Key", "Value"})
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.AppendRow(table.Row{f.paint(text.FgHiCyan, k), pkgstrings.Truncate(fmt.Sprintf("%v", d[k]), 100)})
		}
		t.Render()
	case string:
		fmt.Fprintln(f.out, d)
	default:
		// Structs read best as YAML.
		return NewYAMLFormatter(f.options).FormatData(data)
	}
	return nil
}

// Helper methods

func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if f.options.NoColor {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) formatEmptyMessage(icon, message string) {
	fmt.Fprintf(f.out, "%s %s\n", f.paint(text.FgYellow, icon), f.paint(text.FgYellow, message))
}

func (f *TableFormatter) formatTotal(n int, noun string) {
	if f.options.Quiet {
		return
	}
	fmt.Fprintf(f.out, "%s %s %s\n",
		f.paint(text.FgHiBlue, "Total:"),
		f.paint(text.FgHiWhite, fmt.Sprint(n)),
		f.paint(text.FgHiBlue, noun))
}

func (f *TableFormatter) projectStatus(disabled bool) string {
	if disabled {
		return f.paint(text.FgYellow, "disabled")
	}
	return f.paint(text.FgGreen, "enabled")
}

func (f *TableFormatter) childStatus(c ChildView) string {
	switch {
	case c.Orphan:
		return f.paint(text.FgYellow, "orphaned")
	case !c.Enabled:
		return f.paint(text.FgHiBlack, "disabled")
	default:
		return f.paint(text.FgGreen, "enabled")
	}
}

func (f *TableFormatter) outcome(o string) string {
	switch o {
	case "ok":
		return f.paint(text.FgGreen, "✓")
	case "skipped":
		return f.paint(text.FgYellow, "-")
	default:
		return f.paint(text.FgRed, "✗")
	}
}

func (f *TableFormatter) action(a string) string {
	switch a {
	case "created", "scheduled":
		return f.paint(text.FgGreen, a)
	case "deleted", "failed":
		return f.paint(text.FgRed, a)
	case "retained", "skipped":
		return f.paint(text.FgYellow, a)
	default:
		return a
	}
}

func (f *TableFormatter) reconcileState(s string) string {
	switch s {
	case "Synced":
		return f.paint(text.FgGreen, s)
	case "Error", "Failed":
		return f.paint(text.FgRed, s)
	default:
		return f.paint(text.FgYellow, s)
	}
}

func (f *TableFormatter) lastPass(r *ReportView) string {
	if r == nil {
		return "never"
	}
	return fmt.Sprintf("%s %s", r.Outcome(), formatAge(r.StartedAt))
}

func (f *TableFormatter) passSummary(r ReportView) string {
	if r.Error != "" || r.Skipped != "" {
		return ""
	}
	var parts []string
	for _, action := range []string{"created", "updated", "deleted", "retained", "scheduled", "failed"} {
		if n := r.Counts[action]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, action))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no changes")
	}
	return fmt.Sprintf("(%d heads, %s in %s)", r.Heads, strings.Join(parts, ", "), r.Duration.Round(time.Millisecond))
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	if rev == "" {
		return "-"
	}
	return rev
}

// formatAge renders how long ago t was, e.g. "5m ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
