package mock

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/internal/scm"
)

// WriteHeadsFile writes heads to path in the format read by scm.HeadsFile.
func WriteHeadsFile(t testing.TB, path string, heads ...scm.BranchHead) {
	t.Helper()

	if heads == nil {
		heads = []scm.BranchHead{}
	}
	data, err := yaml.Marshal(heads)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
