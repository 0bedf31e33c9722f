// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package offset

import "unicode/utf16"

// UTF16Len returns the length of s in UTF-16 code units, the unit browser
// selections and stored highlight offsets use.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteIndex converts a UTF-16 offset into a byte index into s. Offsets past
// the end clamp to len(s); an offset inside a surrogate pair rounds up to
// the end of that rune.
func ByteIndex(s string, units int) int {
	if units <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(s)
}

// Substring returns s[start:end] with start and end in UTF-16 code units.
// Out-of-range bounds are clamped and an inverted range yields "".
func Substring(s string, start, end int) string {
	if end <= start {
		return ""
	}
	return s[ByteIndex(s, start):ByteIndex(s, end)]
}
