// Package rawevent implements the Event Decoder (ccbox core component C1):
// turning one line of one engine's log (or one pre-fetched OpenCode row)
// into a typed domain Event. A decoder never panics and never fails a whole
// session on one bad record — unrecognized shapes become a Kind=Note event.
package rawevent

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Kind tags which domain event shape a Event carries, mirroring the union
// in spec.md: session_meta, turn_context, user/assistant message, thinking,
// tool_call, tool_output, token_count, or an unrecognized Note line.
type Kind string

const (
	KindSessionMeta  Kind = "session_meta"
	KindTurnContext  Kind = "turn_context"
	KindUser         Kind = "user"
	KindAssistant    Kind = "assistant"
	KindThinking     Kind = "thinking"
	KindToolCall     Kind = "tool_call"
	KindToolOutput   Kind = "tool_output"
	KindTokenCount   Kind = "token_count"
	KindNote         Kind = "note"
)

// NoteEvent wraps a malformed or unrecognized line as a Note, satisfying
// the decoder contract that no single record shape fails a whole session.
func NoteEvent(rawLine string) Event {
	return Event{Kind: KindNote, RawLine: rawLine}
}

// Event is the normalized, per-line decoder output. Only the fields
// relevant to Kind are populated, following the same flat-struct-with-tag
// shape as ccmodel.TimelineItem (the Timeline Assembler's job is to turn
// one of these into one or more TimelineItems).
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// session_meta
	SessionID string
	CWD       string

	// turn_context
	TurnID          string
	Model           string
	Sandbox         string
	Approval        string
	Personality     string
	InstructionsLen int

	// user / assistant / thinking
	Role string // "user" or "assistant", empty for thinking
	Text string

	// tool_call
	ToolName string
	ToolArgs string
	CallID   string
	Status   string // optional; set only by the OpenCode decoder (tool state on tool_call, success/error on tool_output)

	// tool_output
	OutputCallID string
	Output       string

	// token_count
	InputTokens       int
	CachedInputTokens int
	OutputTokens      int
	ReasoningTokens   int
	TotalTokens       int

	// note (malformed or unrecognized record)
	RawLine string
}

// metadataOnlyPrefixes/wrappers identify synthetic user messages that carry
// tooling context rather than a user's own words (spec.md §4.1 title rule).
var metadataOnlyPrefixes = []string{"# AGENTS.md instructions"}

var metadataOnlyWrappers = [][2]string{
	{"<environment_context>", "</environment_context>"},
	{"<INSTRUCTIONS>", "</INSTRUCTIONS>"},
	{"<skill>", "</skill>"},
}

// isMetadataOnly reports whether text is one of the configured
// metadata-only templates that must not be used as a session title.
func isMetadataOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, prefix := range metadataOnlyPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	for _, wrap := range metadataOnlyWrappers {
		if strings.HasPrefix(trimmed, wrap[0]) && strings.HasSuffix(trimmed, wrap[1]) {
			return true
		}
	}
	return false
}

// maxTitleScan bounds how many post-meta records the title scan inspects.
const maxTitleScan = 250

// maxTitleLen is the maximum rune-width of a derived title (spec.md §4.1).
const maxTitleLen = 120

// DeriveTitle scans at most the first maxTitleScan events for the first
// non-metadata-only user message, following spec.md's shared title rule so
// every engine's scanner derives titles identically. Returns "(untitled)"
// if no eligible message is found.
func DeriveTitle(events []Event) string {
	limit := len(events)
	if limit > maxTitleScan {
		limit = maxTitleScan
	}
	for _, ev := range events[:limit] {
		if ev.Kind != KindUser {
			continue
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" || isMetadataOnly(text) {
			continue
		}
		line := firstLine(text)
		if line == "" {
			continue
		}
		return ClampSummary(line)
	}
	return "(untitled)"
}

func firstLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ClampSummary truncates s to at most maxTitleLen display columns,
// rune-width aware so wide (e.g. CJK) glyphs aren't counted as one column
// and then sliced mid-rune.
func ClampSummary(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= maxTitleLen {
		return s
	}
	return runewidth.Truncate(s, maxTitleLen, "...")
}
