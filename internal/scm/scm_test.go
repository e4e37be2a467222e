package scm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	heads := Normalize([]BranchHead{
		{Name: "main", Revision: "a"},
		{Name: "feature/x", Revision: "b"},
		{Name: ""},
		{Name: "main", Revision: "c"},
	})

	assert.Equal(t, []BranchHead{
		{Name: "feature/x", Revision: "b"},
		{Name: "main", Revision: "a"},
	}, heads)
}

func TestStatic(t *testing.T) {
	s := NewStatic("main", "feature/x")

	heads, err := s.FetchBranchHeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []BranchHead{{Name: "feature/x"}, {Name: "main"}}, heads)

	binding := s.BuildSourceBinding(heads[0])
	assert.Equal(t, "static", binding.Type)
	assert.Equal(t, "feature/x", binding.Branch)
	assert.False(t, binding.IsNone())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FetchBranchHeads(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heads.yaml")
	f := NewHeadsFile(path)

	t.Run("missing file is a failure", func(t *testing.T) {
		_, err := f.FetchBranchHeads(context.Background())
		assert.Error(t, err)
	})

	t.Run("reads heads", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`
- name: main
  revision: 1f2e3d
- name: feature/x
  revision: 4a5b6c
`), 0o644))

		heads, err := f.FetchBranchHeads(context.Background())
		require.NoError(t, err)
		require.Len(t, heads, 2)
		assert.Equal(t, "feature/x", heads[0].Name)
		assert.Equal(t, "1f2e3d", heads[1].Revision)

		binding := f.BuildSourceBinding(heads[1])
		assert.Equal(t, "file", binding.Type)
		assert.Equal(t, path, binding.URL)
		assert.Equal(t, "1f2e3d", binding.Revision)
	})

	t.Run("empty list is zero branches", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0o644))

		heads, err := f.FetchBranchHeads(context.Background())
		require.NoError(t, err)
		assert.Empty(t, heads)
	})

	t.Run("empty file is zero branches", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		heads, err := f.FetchBranchHeads(context.Background())
		require.NoError(t, err)
		assert.Empty(t, heads)
	})

	t.Run("garbage is a failure", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not: [a list"), 0o644))

		_, err := f.FetchBranchHeads(context.Background())
		assert.Error(t, err)
	})
}
