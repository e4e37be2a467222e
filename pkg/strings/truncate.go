package strings

import (
	"strings"
)

// DefaultCellMaxLen is the default width for free-text cells (error messages,
// descriptions) in status and report tables.
const DefaultCellMaxLen = 60

// MinTruncateLen is the minimum maxLen value for Truncate.
const MinTruncateLen = 4

// Truncate collapses s onto a single line and cuts it to at most maxLen runes,
// ending with "..." when something was removed. Error messages from git
// transports are frequently multi-line, which breaks table layouts.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = SingleLine(s)

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// SingleLine replaces every run of whitespace (including newlines) with a
// single space and trims the ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
