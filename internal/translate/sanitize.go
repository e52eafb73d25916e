package translate

import (
	"regexp"
	"strings"
)

var (
	parenNote   = regexp.MustCompile(`(?i)\(\s*(translator'?s\s+)?note\s*:[^)]*\)`)
	bracketNote = regexp.MustCompile(`(?i)\[\s*(translator'?s\s+)?note\s*:?[^\]]*\]`)
	lineNote    = regexp.MustCompile(`(?im)^[ \t]*(translator'?s\s+)?note\s*:.*$`)
	zhNote      = regexp.MustCompile(`[（(]\s*注\s*[:：][^）)]*[）)]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// SanitizeAIText removes "Note: machine translation" style disclaimers that
// models append to translations.
func SanitizeAIText(s string) string {
	out := parenNote.ReplaceAllString(s, "")
	out = bracketNote.ReplaceAllString(out, "")
	out = zhNote.ReplaceAllString(out, "")
	out = lineNote.ReplaceAllString(out, "")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out = strings.Join(lines, "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
