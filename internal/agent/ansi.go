package agent

import "strings"

// StripANSI removes ANSI escape sequences from captured pane text. tmux
// capture-pane -e output is full of SGR color runs, cursor moves, and OSC
// title sequences; detection patterns only ever match the visible text.
func StripANSI(s string) string {
	// Fast path: most captured lines carry no escapes at all.
	if strings.IndexByte(s, 0x1b) < 0 && strings.IndexByte(s, 0x9b) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == 0x1b:
			i = skipEscape(s, i)
		case c == 0x9b && (i == 0 || s[i-1] < 0x80):
			// 8-bit CSI introducer, same grammar as ESC [. The byte is
			// also a legal UTF-8 continuation byte (╛ is E2 95 9B), so it
			// only counts as CSI when it cannot be continuing a
			// multi-byte rune.
			i = skipCSI(s, i+1)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipEscape consumes one escape sequence starting at the ESC byte and
// returns the index just past it.
func skipEscape(s string, i int) int {
	i++ // past ESC
	if i >= len(s) {
		return i
	}
	switch s[i] {
	case '[':
		return skipCSI(s, i+1)
	case ']':
		return skipOSC(s, i+1)
	default:
		// Two-byte sequences such as ESC ( B or ESC = take one more byte.
		return i + 1
	}
}

// skipCSI consumes parameter and intermediate bytes up to and including the
// final byte in the 0x40-0x7e range.
func skipCSI(s string, i int) int {
	for i < len(s) {
		if c := s[i]; c >= 0x40 && c <= 0x7e {
			return i + 1
		}
		i++
	}
	return i
}

// skipOSC consumes an operating-system-command body terminated by BEL or
// the two-byte ST (ESC \).
func skipOSC(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case 0x07:
			return i + 1
		case 0x1b:
			if i+1 < len(s) && s[i+1] == '\\' {
				return i + 2
			}
		}
		i++
	}
	return i
}
