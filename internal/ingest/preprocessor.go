package ingest

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before chunking: line endings become "\n", runs of
// horizontal whitespace collapse to one space, and more than one blank line collapses to one.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	newlines := 0
	pendingSpace := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case unicode.IsSpace(r):
			if newlines == 0 {
				pendingSpace = true
			}
		default:
			if newlines > 0 {
				b.WriteString(strings.Repeat("\n", min(newlines, 2)))
				newlines = 0
			} else if pendingSpace {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
