package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"nul and controls":  {"ab\x00cd\x01\x02\n\txy", "abcd\n\txy"},
		"form feed":         {"page one\fpage two", "page one\npage two"},
		"replacement glyph": {"caf\uFFFDe\x7f", "cafe"},
		"trims edges":       {"\x00  body \n", "body"},
		"empty":             {"", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeText(tc.in))
		})
	}
}
