// Package opencode normalizes OpenCode session rows into rawevent.Events.
// OpenCode stores sessions in a SQLite database rather than a log file; the
// scanner (internal/scan/opencode) is responsible for querying that
// database and handing this package one flattened Row per message part, so
// this package never touches database/sql directly.
package opencode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

// Row is one message-part record as joined from OpenCode's session/message/
// part tables, with millisecond Unix timestamps as stored on disk.
type Row struct {
	SessionID  string
	MessageID  string
	PartID     string
	Role       string // "user" | "assistant", from the owning message
	PartType   string // "text" | "reasoning" | "tool" | "step-finish" | ...
	Text       string
	ToolCallID string
	ToolName   string
	ToolInput  string // JSON, tool part only
	ToolOutput string // tool part only, empty until the tool finishes
	ToolStatus string // "pending" | "running" | "completed" | "error"
	CreatedMS  int64
	Tokens     *RowTokens
}

// RowTokens mirrors OpenCode's step-finish token accounting, attached to a
// Row when PartType is "step-finish".
type RowTokens struct {
	Input     int
	Output    int
	Reasoning int
	CacheRead int
}

// DecodeRow converts one Row into zero or one Event. Part types ccbox has
// no timeline slot for (step-start, patch, file, compaction) surface as a
// Note rather than vanishing, per the decoder's never-fail-the-session
// contract; a row whose part type is entirely unrecognized does the same.
func DecodeRow(r Row) (rawevent.Event, bool, error) {
	ts := time.UnixMilli(r.CreatedMS)

	switch r.PartType {
	case "text":
		if r.Text == "" {
			return rawevent.Event{}, false, nil
		}
		kind := rawevent.KindAssistant
		if r.Role == "user" {
			kind = rawevent.KindUser
		}
		return rawevent.Event{
			Kind:      kind,
			Timestamp: ts,
			Role:      r.Role,
			Text:      r.Text,
		}, true, nil

	case "reasoning":
		if r.Text == "" {
			return rawevent.Event{}, false, nil
		}
		return rawevent.Event{
			Kind:      rawevent.KindThinking,
			Timestamp: ts,
			Text:      r.Text,
		}, true, nil

	case "tool":
		return decodeToolPart(r, ts)

	case "step-finish":
		if r.Tokens == nil {
			return rawevent.Event{}, false, nil
		}
		t := r.Tokens
		return rawevent.Event{
			Kind:              rawevent.KindTokenCount,
			Timestamp:         ts,
			InputTokens:       t.Input,
			OutputTokens:      t.Output,
			ReasoningTokens:   t.Reasoning,
			CachedInputTokens: t.CacheRead,
			TotalTokens:       t.Input + t.Output + t.Reasoning,
		}, true, nil

	case "step-start", "patch", "file", "compaction":
		ev := rawevent.NoteEvent(rawRowLine(r))
		ev.Timestamp = ts
		return ev, true, nil

	default:
		ev := rawevent.NoteEvent(rawRowLine(r))
		ev.Timestamp = ts
		return ev, true, fmt.Errorf("%w: unrecognized part type %q", ccerr.ErrMalformedLine, r.PartType)
	}
}

// rawRowLine renders a Row as the closest thing OpenCode has to a "raw
// line" for a Note item's summary, since its rows come from SQLite rather
// than a text log.
func rawRowLine(r Row) string {
	return fmt.Sprintf("part %s (type=%s, role=%s)", r.PartID, r.PartType, r.Role)
}

// decodeToolPart emits a tool_call event while the tool is still
// pending/running, or a tool_output event once it has completed or failed.
func decodeToolPart(r Row, ts time.Time) (rawevent.Event, bool, error) {
	switch r.ToolStatus {
	case "completed", "error":
		status := "success"
		if r.ToolStatus == "error" {
			status = "error"
		}
		return rawevent.Event{
			Kind:         rawevent.KindToolOutput,
			Timestamp:    ts,
			OutputCallID: r.ToolCallID,
			Output:       r.ToolOutput,
			Status:       status,
		}, true, nil
	default:
		return rawevent.Event{
			Kind:      rawevent.KindToolCall,
			Timestamp: ts,
			ToolName:  r.ToolName,
			ToolArgs:  r.ToolInput,
			CallID:    r.ToolCallID,
			Status:    r.ToolStatus,
		}, true, nil
	}
}

// ParseToolInput is a convenience used by the scanner to re-marshal the
// map[string]any OpenCode stores for a tool's input into the JSON string
// Row.ToolInput expects.
func ParseToolInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}
