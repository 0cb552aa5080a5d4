package mention

import "unicode/utf16"

// Browsers report selection positions in UTF-16 code units. These helpers
// move between those and the byte offsets used everywhere in this package.

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// ByteOffset converts a UTF-16 offset into text to a byte offset. Offsets
// past the end clamp to len(text); one landing inside a surrogate pair
// rounds up to the end of that rune.
func ByteOffset(text string, units int) int {
	if units <= 0 {
		return 0
	}
	n := 0
	for i, r := range text {
		if n >= units {
			return i
		}
		n += utf16Len(r)
	}
	return len(text)
}

// UTF16Offset converts a byte offset into text to UTF-16 code units.
func UTF16Offset(text string, b int) int {
	b = max(0, min(b, len(text)))
	n := 0
	for _, r := range text[:b] {
		n += utf16Len(r)
	}
	return n
}

// UTF16Mentions returns ms with offsets converted to UTF-16 code units.
func UTF16Mentions(text string, ms []Mention) []Mention {
	out := make([]Mention, len(ms))
	for i, m := range ms {
		out[i] = Mention{
			Username: m.Username,
			Start:    UTF16Offset(text, m.Start),
			End:      UTF16Offset(text, m.End),
		}
	}
	return out
}
