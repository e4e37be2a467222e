package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LockProjectExcludesOtherStores(t *testing.T) {
	dir := t.TempDir()
	serve, cli := New(dir), New(dir)

	held, err := serve.LockProject(context.Background(), "webapp")
	require.NoError(t, err)

	_, ok, err := cli.TryLockProject("webapp")
	require.NoError(t, err)
	assert.False(t, ok, "the lock is held through another store")

	other, ok, err := cli.TryLockProject("docs")
	require.NoError(t, err)
	require.True(t, ok, "projects lock independently")
	require.NoError(t, other.Unlock())

	acquired := make(chan *ProjectLock, 1)
	go func() {
		l, err := cli.LockProject(context.Background(), "webapp")
		if err == nil {
			acquired <- l
		}
	}()

	select {
	case <-acquired:
		t.Fatal("LockProject returned while the lock was held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, held.Unlock())
	select {
	case l := <-acquired:
		require.NoError(t, l.Unlock())
	case <-time.After(2 * time.Second):
		t.Fatal("LockProject did not return after Unlock")
	}
}

func TestStore_LockProjectHonoursContext(t *testing.T) {
	s := New(t.TempDir())
	held, err := s.LockProject(context.Background(), "webapp")
	require.NoError(t, err)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = New(s.Root()).LockProject(ctx, "webapp")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_LocksAreNotProjects(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.WriteState("webapp", sample{}))
	l, err := s.LockProject(context.Background(), "webapp")
	require.NoError(t, err)
	require.NoError(t, l.Unlock())

	projects, err := s.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"webapp"}, projects)

	require.NoError(t, s.RemoveProject("webapp"))
	assert.FileExists(t, s.LockPath("webapp"))

	_, err = s.LockProject(context.Background(), "../escape")
	assert.Error(t, err)
}
