package persistence

import "strings"

// SanitizeContent strips bytes that the text column cannot safely hold:
// U+0000 and every C0 control character except line feed, carriage
// return, and tab. Returns the cleaned text and how many runes were
// removed. Sanitizing already-clean content is a no-op.
func SanitizeContent(content string) (string, int) {
	stripped := 0
	var b strings.Builder
	b.Grow(len(content))

	for _, r := range content {
		if r == 0 || (r < 0x20 && r != '\n' && r != '\r' && r != '\t') {
			stripped++
			continue
		}
		b.WriteRune(r)
	}

	if stripped == 0 {
		return content, 0
	}
	return b.String(), stripped
}
