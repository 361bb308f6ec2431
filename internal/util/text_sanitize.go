package util

import "strings"

// SanitizeText cleans text pulled out of a PDF content stream. Form feeds
// become newlines; other control characters and U+FFFD glyph fallbacks are
// dropped.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch == '\f':
			b.WriteRune('\n')
		case ch < 0x20 || ch == 0x7f || ch == '\uFFFD':
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
