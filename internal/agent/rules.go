package agent

import (
	"regexp"
	"strings"

	"github.com/shuntaka9576/agentoast/internal/logging"
)

// RegexPrefix marks a pattern string as a regular expression instead of a
// plain substring. Plain substrings are matched case-insensitively against
// the captured text; regex patterns are applied verbatim, so they opt into
// case folding with (?i) themselves.
const RegexPrefix = "re:"

// WaitingRule pairs a pattern with a label describing the kind of input the
// agent is blocked on. Labels exist for rule-table readability; detection
// collapses every label to ReasonRespond.
type WaitingRule struct {
	Pattern string
	Label   string
}

// RawRules is the uncompiled rule table for one agent type. Tables are plain
// data so user configuration can replace or extend them without touching the
// detector.
type RawRules struct {
	// PromptGlyphs are markers that, alone at the start of a line, signal an
	// idle input prompt.
	PromptGlyphs []string

	// SpinnerChars are codepoints that mark a line as active agent work when
	// they appear as the first visible rune.
	SpinnerChars []string

	// BusyPatterns match screens where the agent is running even without a
	// recognized spinner glyph.
	BusyPatterns []string

	// WaitingPatterns are checked in order; the first match decides.
	WaitingPatterns []WaitingRule

	// FooterPatterns mark persistent hint or mode lines that sit below the
	// prompt. Matching lines are skipped without consuming the unknown-line
	// allowance during prompt scanning.
	FooterPatterns []string
}

// Rules is the compiled form used by Detect.
type Rules struct {
	agentType     Type
	promptGlyphs  []string
	spinnerRunes  map[rune]bool
	busyStrings   []string
	busyRegexps   []*regexp.Regexp
	waitStrings   []WaitingRule
	waitRegexps   []compiledWaiting
	waitOrder     []waitRef
	footerStrings []string
	footerRegexps []*regexp.Regexp
}

type compiledWaiting struct {
	re    *regexp.Regexp
	label string
}

// waitRef preserves table order across the string/regex split.
type waitRef struct {
	regex bool
	idx   int
}

// Compile resolves a raw table into matchers. Invalid regex patterns are
// logged and skipped rather than failing the whole table, so one bad user
// override cannot disable detection for an agent.
func (r RawRules) Compile(agentType Type) *Rules {
	log := logging.ForComponent(logging.CompDetector)

	c := &Rules{
		agentType:    agentType,
		spinnerRunes: make(map[rune]bool),
	}
	for _, g := range r.PromptGlyphs {
		if g = strings.TrimSpace(g); g != "" {
			c.promptGlyphs = append(c.promptGlyphs, g)
		}
	}
	for _, s := range r.SpinnerChars {
		for _, ch := range s {
			c.spinnerRunes[ch] = true
		}
	}
	for _, p := range r.BusyPatterns {
		if expr, ok := strings.CutPrefix(p, RegexPrefix); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				log.Warn("skipping invalid busy pattern", "agent", agentType, "pattern", expr, "error", err)
				continue
			}
			c.busyRegexps = append(c.busyRegexps, re)
		} else if p != "" {
			c.busyStrings = append(c.busyStrings, strings.ToLower(p))
		}
	}
	for _, w := range r.WaitingPatterns {
		if expr, ok := strings.CutPrefix(w.Pattern, RegexPrefix); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				log.Warn("skipping invalid waiting pattern", "agent", agentType, "pattern", expr, "error", err)
				continue
			}
			c.waitRegexps = append(c.waitRegexps, compiledWaiting{re: re, label: w.Label})
			c.waitOrder = append(c.waitOrder, waitRef{regex: true, idx: len(c.waitRegexps) - 1})
		} else if w.Pattern != "" {
			c.waitStrings = append(c.waitStrings, WaitingRule{Pattern: strings.ToLower(w.Pattern), Label: w.Label})
			c.waitOrder = append(c.waitOrder, waitRef{regex: false, idx: len(c.waitStrings) - 1})
		}
	}
	for _, p := range r.FooterPatterns {
		if expr, ok := strings.CutPrefix(p, RegexPrefix); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				log.Warn("skipping invalid footer pattern", "agent", agentType, "pattern", expr, "error", err)
				continue
			}
			c.footerRegexps = append(c.footerRegexps, re)
		} else if p != "" {
			c.footerStrings = append(c.footerStrings, strings.ToLower(p))
		}
	}
	return c
}

// Merge layers user configuration over a default table. Non-empty override
// slices replace the defaults wholesale; extra slices always append. This
// lets a user either retune an agent completely or just add the one dialog
// string their setup produces.
func Merge(defaults RawRules, overrides RawRules, extraSpinners []string, extraWaiting []WaitingRule) RawRules {
	out := defaults
	if len(overrides.PromptGlyphs) > 0 {
		out.PromptGlyphs = overrides.PromptGlyphs
	}
	if len(overrides.SpinnerChars) > 0 {
		out.SpinnerChars = overrides.SpinnerChars
	}
	if len(overrides.BusyPatterns) > 0 {
		out.BusyPatterns = overrides.BusyPatterns
	}
	if len(overrides.WaitingPatterns) > 0 {
		out.WaitingPatterns = overrides.WaitingPatterns
	}
	if len(overrides.FooterPatterns) > 0 {
		out.FooterPatterns = overrides.FooterPatterns
	}
	if len(extraSpinners) > 0 {
		out.SpinnerChars = append(append([]string{}, out.SpinnerChars...), extraSpinners...)
	}
	if len(extraWaiting) > 0 {
		out.WaitingPatterns = append(append([]WaitingRule{}, out.WaitingPatterns...), extraWaiting...)
	}
	return out
}

// selectionRegex matches a selection cursor on a numbered option followed by
// at least one more numbered option, the shape Claude and Codex render for
// multiple-choice questions:
//
//	❯ 1. Yes
//	  2. No, and tell me what to do differently
const selectionRegex = `re:❯\s*\d+\.[^\n]*\n[^\n]*\b\d+\.`

// DefaultRules returns the built-in table for an agent type, or false for
// unrecognized types.
func DefaultRules(t Type) (RawRules, bool) {
	switch t {
	case TypeClaude:
		return RawRules{
			PromptGlyphs: []string{"❯", ">"},
			// ✻ and · also appear as spinner frames but are too common in
			// ordinary output to trust bare; the ellipsis busy regex below
			// catches them mid-animation.
			SpinnerChars: []string{"✢", "✽", "✶", "✳"},
			BusyPatterns: []string{
				`re:(?m)^[ \t]*[✢✽✶✳✻·][^\n]*…`,
				"esc to interrupt",
				"ctrl+c to interrupt",
			},
			WaitingPatterns: []WaitingRule{
				{Pattern: selectionRegex, Label: "select"},
				{Pattern: "enter to select", Label: "select"},
				{Pattern: "no, and tell claude", Label: "approve"},
				{Pattern: "do you want", Label: "question"},
				{Pattern: "would you like", Label: "question"},
			},
			FooterPatterns: []string{
				"? for shortcuts",
				"bypass permissions",
				"plan mode",
				"accept edits",
				"auto-accept",
				"shift+tab",
			},
		}, true
	case TypeCodex:
		return RawRules{
			PromptGlyphs: []string{"❯", ">"},
			SpinnerChars: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
			BusyPatterns: []string{
				"esc to interrupt",
				`re:(?i)\(\s*\d+m?\s*\d*s\s*•`,
			},
			WaitingPatterns: []WaitingRule{
				{Pattern: "enter to submit answer", Label: "answer"},
				{Pattern: "enter to confirm", Label: "approve"},
				{Pattern: selectionRegex, Label: "select"},
			},
			FooterPatterns: []string{
				"ctrl+",
				"tokens used",
				"send q to",
			},
		}, true
	case TypeOpenCode:
		return RawRules{
			PromptGlyphs: []string{"❯", ">"},
			SpinnerChars: []string{"█", "▓", "▒", "░"},
			BusyPatterns: []string{
				"esc interrupt",
				"working...",
			},
			WaitingPatterns: []WaitingRule{
				{Pattern: "permission required", Label: "approve"},
				{Pattern: `re:(?si)allow \(a\).*deny \(d\)`, Label: "approve"},
				{Pattern: `re:(?i)enter\s+submit\s+esc\s+dismiss`, Label: "select"},
			},
			FooterPatterns: []string{
				"▣",
				"tab switch",
				"ctrl+",
			},
		}, true
	default:
		var zero RawRules
		return zero, false
	}
}
