package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/project"
)

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "multibranch" {
		t.Errorf("Expected Use to be 'multibranch', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("Expected descriptions to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
	if !rootCmd.SilenceErrors {
		t.Error("Expected SilenceErrors to be true")
	}
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}

	for _, expected := range []string{"version", "serve", "sync", "status", "enable", "disable", "template", "delete", "log"} {
		if !found[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config-path", "log-level", "output", "quiet", "no-color"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Error executing help command: %v", err)
	}
	if !strings.Contains(buf.String(), "one per live branch") {
		t.Errorf("Help output should contain the long description. Got: %q", buf.String())
	}
}

func TestExecutePrintsErrorOnce(t *testing.T) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"no-such-command"})

	if code := execute(root); code != ExitCodeError {
		t.Errorf("execute() = %d, want %d", code, ExitCodeError)
	}
	if got := strings.Count(errOut.String(), "Error: "); got != 1 {
		t.Errorf("Expected exactly one error line, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Errorf("Expected the cobra error in the output, got %q", errOut.String())
	}
}

func TestExecuteSuccess(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})

	if code := execute(root); code != ExitCodeSuccess {
		t.Errorf("execute() = %d, want %d", code, ExitCodeSuccess)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"configuration", fmt.Errorf("load: %w", config.NewConfigurationError("/x/config.yaml", config.ErrorTypeParse, "bad", nil)), ExitCodeConfig},
		{"fetch", &project.FetchError{Project: "webapp", Source: "static", Err: errors.New("offline")}, ExitCodeFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
