package util

import "strings"

// Preview collapses whitespace and truncates s to maxRunes for log lines.
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 120
	}
	s = strings.Join(strings.Fields(SanitizeText(s)), " ")
	runes := []rune(s)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "..."
	}
	return s
}
