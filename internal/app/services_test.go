package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/internal/events"
	"github.com/giantswarm/multibranch/internal/project"
	"github.com/giantswarm/multibranch/internal/scm"
	"github.com/giantswarm/multibranch/internal/scm/gitscm"
	"github.com/giantswarm/multibranch/internal/testing/mock"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	headsFile := filepath.Join(dir, "docs-heads.yaml")
	mock.WriteHeadsFile(t, headsFile, scm.BranchHead{Name: "main", Revision: "abc"})

	watch := false
	cfg := config.GetDefaultConfig()
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.Reconciler.WatchState = &watch
	cfg.Projects = []config.ProjectConfig{
		{Name: "webapp", Source: config.SourceConfig{Type: config.SourceTypeStatic, Branches: []string{"main", "feature/x"}}},
		{Name: "docs", Kind: "matrix", Source: config.SourceConfig{Type: config.SourceTypeFile, HeadsFile: headsFile}},
		{Name: "empty"},
	}
	return cfg
}

func newTestServices(t *testing.T) *Services {
	t.Helper()
	s, err := InitializeServices(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func reasons(evs []events.Event) []events.EventReason {
	out := make([]events.EventReason, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Reason)
	}
	return out
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.SourceConfig{})
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewSource(config.SourceConfig{Type: config.SourceTypeStatic, Branches: []string{"main"}})
	require.NoError(t, err)
	assert.Equal(t, "static", src.ID())

	src, err = NewSource(config.SourceConfig{Type: config.SourceTypeFile, HeadsFile: "/tmp/heads.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/heads.yaml", src.ID())

	src, err = NewSource(config.SourceConfig{Type: config.SourceTypeGit, URL: "https://example.com/repo.git"})
	require.NoError(t, err)
	assert.IsType(t, &gitscm.Source{}, src)

	_, err = NewSource(config.SourceConfig{Type: "svn"})
	assert.Error(t, err)
}

func TestParentSpec(t *testing.T) {
	defaults := config.GetDefaultConfig().Defaults

	spec, err := ParentSpec(config.ProjectConfig{
		Name:                    "webapp",
		SuppressNewBranchBuilds: true,
		Retention:               config.RetentionConfig{Policy: "grace", MaxPasses: 2},
	}.Effective(defaults))
	require.NoError(t, err)
	assert.Equal(t, "webapp", spec.Name)
	assert.Equal(t, "freestyle", spec.Kind.Name())
	assert.Equal(t, project.Grace{MaxPasses: 2}, spec.Retention)
	assert.Nil(t, spec.Source)
	assert.True(t, spec.Settings.SuppressNewBranchBuilds)
	assert.Equal(t, config.DefaultSyncInterval, spec.Settings.SyncInterval)

	_, err = ParentSpec(config.ProjectConfig{Name: "webapp", Kind: "pipeline"})
	assert.Error(t, err)
}

func TestInitializeServices(t *testing.T) {
	s := newTestServices(t)

	var names []string
	for _, p := range s.Parents() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"docs", "empty", "webapp"}, names)

	docs, ok := s.Parent("docs")
	require.True(t, ok)
	assert.Equal(t, "matrix", docs.Kind().Name())

	assert.ElementsMatch(t, []string{"docs", "empty", "webapp"}, s.Reconciler.Projects())
	assert.False(t, s.Reconciler.IsRunning())
}

func TestInitializeServices_InvalidProject(t *testing.T) {
	cfg := testConfig(t)
	cfg.Projects = append(cfg.Projects, config.ProjectConfig{Name: "broken", Kind: "pipeline"})

	_, err := InitializeServices(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project broken")
}

func TestServices_Lookup(t *testing.T) {
	s := newTestServices(t)

	all, err := s.Lookup()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := s.Lookup("webapp")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "webapp", some[0].Name())

	_, err = s.Lookup("webapp", "missing")
	assert.EqualError(t, err, `project "missing" is not configured`)
}

func TestServices_SyncProjects(t *testing.T) {
	s := newTestServices(t)
	parents, err := s.Lookup()
	require.NoError(t, err)

	reports, err := s.SyncProjects(context.Background(), parents, project.SyncOptions{})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, "docs", reports[0].Project)
	assert.Equal(t, []string{"main"}, reports[0].Children(project.ActionCreated))
	assert.Empty(t, reports[1].Entries, "a project without source has no children")
	assert.ElementsMatch(t, []string{"main", "feature%2Fx"}, reports[2].Children(project.ActionCreated))

	s.Dispatcher.Wait()
	assert.Equal(t, []string{"feature%2Fx", "main"}, s.Topology.Children("webapp"))
	assert.Len(t, s.Executor.PendingBuilds("webapp", "main"), 1)

	assert.Contains(t, reasons(s.Recorder.Events("webapp")), events.ReasonProjectSynced)
	assert.Contains(t, reasons(s.Recorder.Events("webapp")), events.ReasonChildCreated)
}

func TestServices_SyncProjectsReportsFetchFailure(t *testing.T) {
	s := newTestServices(t)
	docs, _ := s.Parent("docs")

	pc, _ := s.Config.Project("docs")
	require.NoError(t, os.Remove(pc.Source.HeadsFile))

	reports, err := s.SyncProjects(context.Background(), []*project.Parent{docs}, project.SyncOptions{})
	require.Error(t, err)
	assert.True(t, project.IsFetchError(err))
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].Error)
	assert.Contains(t, reasons(s.Recorder.Events("docs")), events.ReasonProjectSyncFailed)
}

func TestServices_Cascades(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	webapp, _ := s.Parent("webapp")

	_, err := s.SyncProjects(ctx, []*project.Parent{webapp}, project.SyncOptions{})
	require.NoError(t, err)

	require.NoError(t, s.SetDisabled(ctx, webapp, true))
	assert.True(t, webapp.IsDisabled())
	for _, c := range webapp.Children() {
		assert.True(t, c.Disabled, c.Name)
	}

	require.NoError(t, s.SetDisabled(ctx, webapp, false))
	assert.False(t, webapp.IsDisabled())

	require.NoError(t, s.DeleteChild(ctx, webapp, "main"))
	assert.Nil(t, webapp.Child("main"))
	assert.Error(t, s.DeleteChild(ctx, webapp, "main"))

	got := reasons(s.Recorder.Events("webapp"))
	assert.Contains(t, got, events.ReasonProjectDisabled)
	assert.Contains(t, got, events.ReasonProjectEnabled)
	assert.Contains(t, got, events.ReasonChildDeleted)
}

func TestServices_UpdateTemplate(t *testing.T) {
	s := newTestServices(t)
	webapp, _ := s.Parent("webapp")

	require.NoError(t, s.UpdateTemplate(context.Background(), webapp, []byte("description: built by multibranch\nsource:\n  type: none\n")))
	assert.Equal(t, "built by multibranch", webapp.Template().Description)
	assert.Contains(t, reasons(s.Recorder.Events("webapp")), events.ReasonTemplateUpdated)
}

func TestServices_DeleteProject(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	webapp, _ := s.Parent("webapp")

	_, err := s.SyncProjects(ctx, []*project.Parent{webapp}, project.SyncOptions{})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, webapp))

	_, ok := s.Parent("webapp")
	assert.False(t, ok)
	assert.NotContains(t, s.Reconciler.Projects(), "webapp")
	assert.Empty(t, s.Topology.Children("webapp"))
	assert.NoDirExists(t, s.Store.ProjectDir("webapp"))

	evs := s.Recorder.Events("webapp")
	require.NotEmpty(t, evs)
	assert.Equal(t, events.ReasonProjectDeleted, evs[len(evs)-1].Reason)
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	s := newTestServices(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, s) }()

	require.Eventually(t, func() bool {
		webapp, _ := s.Parent("webapp")
		return len(webapp.Children()) == 2
	}, 5*time.Second, 10*time.Millisecond, "serve runs an initial pass")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.False(t, s.Reconciler.IsRunning())
}
