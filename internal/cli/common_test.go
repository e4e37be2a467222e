package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessages(t *testing.T) {
	assert.Equal(t, "Error: boom", FormatError(errors.New("boom")))
	assert.Contains(t, FormatSuccess("Project enabled"), "✓ Project enabled")
	assert.Contains(t, FormatWarning("2 children failed"), "⚠ 2 children failed")
}
