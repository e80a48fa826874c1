package ingest

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Preprocess normalizes extracted text for chunking: line endings become "\n", runs of
// spaces and tabs collapse to one space, lines are trimmed, and more than one blank
// line collapses to a single paragraph break.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
