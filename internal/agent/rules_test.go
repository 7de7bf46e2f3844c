package agent

import (
	"testing"
)

func TestDefaultRules_KnownTypes(t *testing.T) {
	for _, typ := range KnownTypes() {
		raw, ok := DefaultRules(typ)
		if !ok {
			t.Fatalf("DefaultRules(%q) missing", typ)
		}
		if len(raw.PromptGlyphs) == 0 {
			t.Errorf("%s: no prompt glyphs", typ)
		}
		if len(raw.WaitingPatterns) == 0 {
			t.Errorf("%s: no waiting patterns", typ)
		}
	}
	if _, ok := DefaultRules(Type("gemini")); ok {
		t.Error("DefaultRules accepted an unknown type")
	}
}

func TestCompile_SkipsInvalidRegex(t *testing.T) {
	raw := RawRules{
		BusyPatterns:    []string{"re:([", "esc to interrupt"},
		WaitingPatterns: []WaitingRule{{Pattern: "re:)(", Label: "broken"}, {Pattern: "do you want", Label: "question"}},
		FooterPatterns:  []string{"re:**", "? for shortcuts"},
	}
	rules := raw.Compile(TypeClaude)

	if len(rules.busyRegexps) != 0 {
		t.Errorf("invalid busy regex compiled: %d", len(rules.busyRegexps))
	}
	if len(rules.busyStrings) != 1 {
		t.Errorf("busyStrings = %d, want 1", len(rules.busyStrings))
	}
	if len(rules.waitOrder) != 1 {
		t.Errorf("waitOrder = %d, want 1", len(rules.waitOrder))
	}
	if len(rules.footerStrings) != 1 || len(rules.footerRegexps) != 0 {
		t.Errorf("footer matchers = %d strings, %d regexps, want 1, 0",
			len(rules.footerStrings), len(rules.footerRegexps))
	}

	got := Detect(rules, "Do you want to proceed?", Result{})
	if got.Status != StatusWaiting {
		t.Errorf("surviving pattern did not match, got %+v", got)
	}
}

func TestCompile_LowercasesPlainPatterns(t *testing.T) {
	rules := RawRules{
		WaitingPatterns: []WaitingRule{{Pattern: "Enter To Select", Label: "select"}},
	}.Compile(TypeClaude)

	got := Detect(rules, "Press ENTER to select an option", Result{})
	if got.Status != StatusWaiting {
		t.Errorf("case-insensitive plain match failed: %+v", got)
	}
}

func TestMerge_OverridesReplaceAndExtrasAppend(t *testing.T) {
	defaults, _ := DefaultRules(TypeClaude)

	merged := Merge(defaults, RawRules{
		SpinnerChars: []string{"◐", "◓"},
	}, []string{"◑"}, []WaitingRule{{Pattern: "launch the missiles?", Label: "approve"}})

	if len(merged.SpinnerChars) != 3 {
		t.Fatalf("SpinnerChars = %v, want override plus extra", merged.SpinnerChars)
	}
	if merged.SpinnerChars[2] != "◑" {
		t.Errorf("extra spinner not appended: %v", merged.SpinnerChars)
	}
	if len(merged.WaitingPatterns) != len(defaults.WaitingPatterns)+1 {
		t.Errorf("WaitingPatterns = %d, want defaults plus one", len(merged.WaitingPatterns))
	}
	if len(merged.PromptGlyphs) != len(defaults.PromptGlyphs) {
		t.Errorf("PromptGlyphs changed without an override")
	}

	rules := merged.Compile(TypeClaude)
	if got := Detect(rules, "◐ twiddling", Result{}); got.Status != StatusRunning {
		t.Errorf("override spinner not honored: %+v", got)
	}
	if got := Detect(rules, "✶ twiddling", Result{}); got.Status == StatusRunning {
		t.Errorf("replaced spinner still matched: %+v", got)
	}
	if got := Detect(rules, "Launch the missiles? (y/n)", Result{}); got.Status != StatusWaiting {
		t.Errorf("extra waiting pattern not honored: %+v", got)
	}
}

func TestMerge_DoesNotMutateDefaults(t *testing.T) {
	defaults, _ := DefaultRules(TypeCodex)
	wantWaiting := len(defaults.WaitingPatterns)
	wantSpinners := len(defaults.SpinnerChars)

	Merge(defaults, RawRules{}, []string{"◒"}, []WaitingRule{{Pattern: "x", Label: "x"}})

	again, _ := DefaultRules(TypeCodex)
	if len(again.WaitingPatterns) != wantWaiting || len(again.SpinnerChars) != wantSpinners {
		t.Error("Merge mutated the default table")
	}
}
