// Package utils holds small helpers shared by the kotae packages: text previews, vector
// normalization, retries for provider calls and logger construction.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most maxLen runes and appends "..." when anything was cut.
// Trailing whitespace before the ellipsis is dropped. A maxLen of zero or less disables it.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return strings.TrimRight(s[:i], " \t\n") + "..."
		}
		n++
	}
	return s
}
