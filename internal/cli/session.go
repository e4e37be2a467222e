package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/multibranch/internal/app"
	"github.com/giantswarm/multibranch/internal/formatting"
	"github.com/giantswarm/multibranch/internal/project"
)

// Session is an opened application for the duration of one command.
type Session struct {
	*app.Application

	flags *CommandFlags
}

// Open bootstraps the application from flags.
func Open(ctx context.Context, flags *CommandFlags) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	level := flags.LogLevel
	if level == "" {
		level = DefaultCommandLogLevel
	}

	application, err := app.NewApplication(ctx, app.NewConfig(flags.ConfigPath, level, false))
	if err != nil {
		return nil, err
	}
	return &Session{Application: application, flags: flags}, nil
}

// Formatter returns the formatter selected by the flags, writing to out.
func (s *Session) Formatter(out io.Writer) (formatting.Formatter, error) {
	opts, err := s.flags.FormatterOptions(out)
	if err != nil {
		return nil, err
	}
	return formatting.NewFormatter(opts), nil
}

// Parents resolves project arguments. all must be set to select every
// project when names is empty.
func (s *Session) Parents(names []string, all bool) ([]*project.Parent, error) {
	if len(names) == 0 && !all {
		return nil, fmt.Errorf("specify at least one project or --all")
	}
	return s.Services().Lookup(names...)
}

// PendingBuilds counts the queued builds of a child.
func (s *Session) PendingBuilds(projectName, child string) int {
	return len(s.Services().Executor.PendingBuilds(projectName, child))
}

// WithSpinner runs fn while showing a spinner with msg on stderr.
func (s *Session) WithSpinner(msg string, fn func() error) error {
	return WithSpinner(s.flags.Interactive(), msg, fn)
}

// WithSpinner runs fn, showing a spinner with msg on stderr when show is set.
func WithSpinner(show bool, msg string, fn func() error) error {
	if !show {
		return fn()
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " " + msg
	sp.Start()
	err := fn()
	if err != nil {
		sp.FinalMSG = text.FgRed.Sprint("❌ "+msg+" failed") + "\n"
	}
	sp.Stop()
	return err
}
