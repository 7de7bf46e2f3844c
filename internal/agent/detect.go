package agent

import (
	"strings"
	"unicode/utf8"
)

// maxFooterSkip bounds how many unrecognized lines the prompt scan tolerates
// between the bottom of the screen and the input prompt. Agent TUIs park at
// most a couple of hint lines under the prompt box.
const maxFooterSkip = 3

// Detect infers the activity state of an agent pane from captured screen
// text. It is a pure function of the rule table, the text, and the previous
// result: the same inputs always produce the same output, and no rule match
// falls back to the previous result rather than guessing.
//
// Matching runs in fixed priority order: a waiting pattern beats a spinner,
// a spinner beats an idle prompt, and the idle prompt only counts when it is
// bare. Waiting wins because an open dialog is the state the user most needs
// to hear about, even while a spinner frame is still on screen.
func Detect(r *Rules, screen string, prev Result) Result {
	if r == nil {
		return Result{}
	}

	text := normalizeScreen(screen)
	if strings.TrimSpace(text) == "" {
		return prev
	}
	lowered := collapseSpaces(strings.ToLower(text))

	if _, ok := r.matchWaiting(text, lowered); ok {
		return Result{Status: StatusWaiting, WaitingReason: ReasonRespond}
	}
	if r.matchBusy(text, lowered) {
		return Result{Status: StatusRunning}
	}
	if r.matchIdlePrompt(text) {
		return Result{Status: StatusIdle}
	}
	return prev
}

// normalizeScreen strips escape sequences and normalizes the whitespace
// variants TUIs emit so rule patterns can be written in plain text.
func normalizeScreen(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	return s
}

// collapseSpaces squeezes runs of spaces and tabs into one space, keeping
// newlines intact.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, ch := range s {
		switch {
		case ch == ' ' || ch == '\t':
			space = true
		default:
			if space {
				if ch != '\n' && b.Len() > 0 {
					b.WriteByte(' ')
				}
				space = false
			}
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func (r *Rules) matchWaiting(text, lowered string) (string, bool) {
	for _, ref := range r.waitOrder {
		if ref.regex {
			if cw := r.waitRegexps[ref.idx]; cw.re.MatchString(text) {
				return cw.label, true
			}
		} else {
			if w := r.waitStrings[ref.idx]; strings.Contains(lowered, w.Pattern) {
				return w.Label, true
			}
		}
	}
	return "", false
}

func (r *Rules) matchBusy(text, lowered string) bool {
	for _, p := range r.busyStrings {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	for _, re := range r.busyRegexps {
		if re.MatchString(text) {
			return true
		}
	}
	if len(r.spinnerRunes) == 0 {
		return false
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(stripBoxChars(line), " \t")
		if trimmed == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(trimmed)
		if r.spinnerRunes[first] {
			return true
		}
	}
	return false
}

// matchIdlePrompt scans bottom-up for a bare prompt glyph. Blank lines, box
// borders, and known footer hints are skipped freely; anything else burns
// the unknown-line allowance so a prompt buried in scrollback never reads
// as idle.
func (r *Rules) matchIdlePrompt(text string) bool {
	lines := strings.Split(text, "\n")
	unknown := 0
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(stripBoxChars(lines[i]))
		if line == "" {
			continue
		}
		if r.isFooterLine(strings.ToLower(line)) {
			continue
		}
		for _, g := range r.promptGlyphs {
			if line == g {
				return true
			}
			if rest, ok := strings.CutPrefix(line, g); ok && strings.HasPrefix(rest, " ") {
				// Prompt with typed input: the user is mid-thought, not
				// idle, and nothing above the prompt can change that.
				return false
			}
		}
		unknown++
		if unknown > maxFooterSkip {
			return false
		}
	}
	return false
}

func (r *Rules) isFooterLine(lowered string) bool {
	for _, p := range r.footerStrings {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	for _, re := range r.footerRegexps {
		if re.MatchString(lowered) {
			return true
		}
	}
	return false
}

// stripBoxChars blanks out box-drawing runes so bordered TUI rows reduce to
// their visible content. A pure separator row reduces to an empty line.
func stripBoxChars(s string) string {
	if !strings.ContainsFunc(s, isBoxRune) {
		return s
	}
	return strings.Map(func(ch rune) rune {
		if isBoxRune(ch) {
			return ' '
		}
		return ch
	}, s)
}

func isBoxRune(ch rune) bool {
	return ch >= 0x2500 && ch <= 0x257f
}
