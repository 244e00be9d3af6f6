package output

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// SanitizeTerminal neutralizes untrusted text, such as process names,
// before it reaches an interactive terminal. Control characters and
// invalid UTF-8 bytes become visible escapes:
//   - "hi\x1b[31m" -> `hi\x1b[31m` (ESC can no longer start a sequence)
//   - "nul\x00"    -> `nul\x00`
//   - "bad\xff"    -> `bad\xff` (invalid byte)
//
// Tabs and newlines pass through untouched.
func SanitizeTerminal(s string) string {
	if terminalSafe(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			escapeByte(&b, s[i])
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			escapeRune(&b, r)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// terminalSafe is the fast path: most strings carry nothing to escape and
// are returned without allocating.
func terminalSafe(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return false
		}
		i += size
	}
	return true
}

func escapeByte(b *strings.Builder, c byte) {
	b.WriteString(`\x`)
	b.WriteByte(hexDigits[c>>4])
	b.WriteByte(hexDigits[c&0x0f])
}

// escapeRune writes `\xHH` for latin-1 controls, `\uHHHH` inside the BMP
// and `\UHHHHHHHH` beyond it.
func escapeRune(b *strings.Builder, r rune) {
	switch {
	case r <= 0xFF:
		escapeByte(b, byte(r))
	case r <= 0xFFFF:
		b.WriteString(`\u`)
		for shift := 12; shift >= 0; shift -= 4 {
			b.WriteByte(hexDigits[(r>>shift)&0x0f])
		}
	default:
		b.WriteString(`\U`)
		for shift := 28; shift >= 0; shift -= 4 {
			b.WriteByte(hexDigits[(r>>shift)&0x0f])
		}
	}
}
