package rawevent

import "testing"

func TestDeriveTitleSkipsMetadataOnlyMessages(t *testing.T) {
	events := []Event{
		{Kind: KindUser, Text: "<environment_context>cwd=/tmp</environment_context>"},
		{Kind: KindUser, Text: "# AGENTS.md instructions\nsome boilerplate"},
		{Kind: KindAssistant, Text: "ignored, wrong kind"},
		{Kind: KindUser, Text: "fix the flaky test in parser_test.go\nextra detail on a second line"},
	}
	got := DeriveTitle(events)
	if got != "fix the flaky test in parser_test.go" {
		t.Fatalf("DeriveTitle = %q", got)
	}
}

func TestDeriveTitleUntitledWhenNoEligibleMessage(t *testing.T) {
	events := []Event{
		{Kind: KindUser, Text: "<skill>some skill body</skill>"},
		{Kind: KindAssistant, Text: "hello"},
	}
	if got := DeriveTitle(events); got != "(untitled)" {
		t.Fatalf("DeriveTitle = %q, want (untitled)", got)
	}
}

func TestDeriveTitleScanIsBounded(t *testing.T) {
	events := make([]Event, 0, maxTitleScan+5)
	for i := 0; i < maxTitleScan+4; i++ {
		events = append(events, Event{Kind: KindAssistant, Text: "filler"})
	}
	events = append(events, Event{Kind: KindUser, Text: "too late to be found"})
	if got := DeriveTitle(events); got != "(untitled)" {
		t.Fatalf("DeriveTitle = %q, want (untitled) since the real message is past the scan limit", got)
	}
}

func TestClampSummaryShortStringUnchanged(t *testing.T) {
	s := "short text"
	if got := ClampSummary(s); got != s {
		t.Fatalf("ClampSummary(%q) = %q", s, got)
	}
}

func TestClampSummaryTruncatesLongStringAndStripsNewlines(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "1234567\n"
	}
	got := ClampSummary(long)
	if len(got) == 0 {
		t.Fatal("expected non-empty clamp result")
	}
	for _, r := range got {
		if r == '\n' {
			t.Fatalf("ClampSummary result still contains a newline: %q", got)
		}
	}
	if !hasSuffix(got, "...") {
		t.Fatalf("expected truncated result to end with ellipsis, got %q", got)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
