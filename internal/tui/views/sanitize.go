package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops runes that message text from other users should not
// be able to put on the screen: control characters other than newline and tab,
// and the emoji modifiers tcell cannot lay out (skin tones, zero width joiner,
// variation selectors). A modified emoji falls back to its base glyph.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
