package answer

import "unicode/utf16"

// UTF16Len is the length of text as Telegram counts it, in UTF-16 code units.
func UTF16Len(text string) int {
	n := 0
	for _, r := range text {
		n += units(r)
	}
	return n
}

// Chunk splits text into consecutive pieces of at most size UTF-16 code units.
// Concatenating the pieces gives back text. A rune, and so a surrogate pair, is
// never split; a piece may fall one unit short of size for that reason.
func Chunk(text string, size int) []string {
	if size <= 0 || UTF16Len(text) <= size {
		return []string{text}
	}
	var out []string
	start, used := 0, 0
	for i, r := range text {
		u := units(r)
		if used+u > size && i > start {
			out = append(out, text[start:i])
			start, used = i, 0
		}
		used += u
	}
	return append(out, text[start:])
}

// Truncate cuts text to at most max UTF-16 code units and appends ellipsis when
// text is longer than max.
func Truncate(text string, max int, ellipsis string) string {
	if UTF16Len(text) <= max {
		return text
	}
	used := 0
	for i, r := range text {
		u := units(r)
		if used+u > max {
			return text[:i] + ellipsis
		}
		used += u
	}
	return text
}

func units(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// invalid UTF-8 decodes to U+FFFD, which is one unit
	return 1
}
