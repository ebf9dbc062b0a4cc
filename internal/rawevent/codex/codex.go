// Package codex decodes Codex CLI session JSONL lines into rawevent.Events.
// The wire shapes mirror codex-rs's session recorder: one JSON object per
// line, a mandatory session_meta first line, and a payload whose shape
// depends on the sibling "type" field.
package codex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

// scannerBufPool reuses line buffers across session files: 64KB to start,
// grown by bufio.Scanner up to maxLineSize (1MB) for longer lines.
var scannerBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 64*1024)
		return &buf
	},
}

const maxLineSize = 1024 * 1024

// rawRecord is the line envelope: a timestamp, a type discriminator, and a
// type-dependent payload kept as raw JSON until the type is known.
type rawRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type sessionMetaPayload struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	CWD       string    `json:"cwd"`
	Source    string    `json:"source"`
}

type responseItemPayload struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   []contentBlock  `json:"content"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	CallID    string          `json:"call_id"`
	Output    json.RawMessage `json:"output,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type eventMsgPayload struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Info *tokenCountInfo `json:"info,omitempty"`
}

type tokenCountInfo struct {
	TotalTokenUsage *tokenUsage `json:"total_token_usage"`
	LastTokenUsage  *tokenUsage `json:"last_token_usage"`
}

type tokenUsage struct {
	InputTokens           int `json:"input_tokens"`
	CachedInputTokens     int `json:"cached_input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
	TotalTokens           int `json:"total_tokens"`
}

type turnContextPayload struct {
	Model    string `json:"model"`
	Sandbox  string `json:"sandbox_policy"`
	Approval string `json:"approval_policy"`
}

// DecodeFirstLine parses the mandatory first line of a Codex session file
// and returns its session_meta payload, or ccerr.ErrNotASession if the
// first line isn't a session_meta record.
func DecodeFirstLine(line []byte) (rawevent.Event, error) {
	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rawevent.Event{}, fmt.Errorf("%w: %v", ccerr.ErrNotASession, err)
	}
	if rec.Type != "session_meta" {
		return rawevent.Event{}, ccerr.ErrNotASession
	}
	var meta sessionMetaPayload
	if err := json.Unmarshal(rec.Payload, &meta); err != nil {
		return rawevent.Event{}, fmt.Errorf("%w: %v", ccerr.ErrNotASession, err)
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = meta.Timestamp
	}
	return rawevent.Event{
		Kind:      rawevent.KindSessionMeta,
		Timestamp: ts,
		SessionID: meta.ID,
		CWD:       meta.CWD,
	}, nil
}

// DecodeLine turns one JSONL line into at most one Event. ok is false for
// event_msg records: a token_count with no usage attached yet, and every
// other event_msg subtype (see decodeEventMsg). Malformed JSON and
// unrecognized record types and response_item subtypes surface as a
// Kind=Note event carrying the original line, per the decoder's
// never-fail-the-session contract. err is non-nil only when
// the line was genuinely malformed, wrapping ccerr.ErrMalformedLine so the
// caller can count it as a warning.
func DecodeLine(line []byte) (ev rawevent.Event, ok bool, err error) {
	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rawevent.NoteEvent(string(line)), true, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
	}

	switch rec.Type {
	case "session_meta":
		var meta sessionMetaPayload
		if err := json.Unmarshal(rec.Payload, &meta); err != nil {
			return rawevent.NoteEvent(string(line)), true, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
		}
		return rawevent.Event{
			Kind:      rawevent.KindSessionMeta,
			Timestamp: rec.Timestamp,
			SessionID: meta.ID,
			CWD:       meta.CWD,
		}, true, nil

	case "turn_context":
		var tc turnContextPayload
		if err := json.Unmarshal(rec.Payload, &tc); err != nil {
			return rawevent.NoteEvent(string(line)), true, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
		}
		return rawevent.Event{
			Kind:      rawevent.KindTurnContext,
			Timestamp: rec.Timestamp,
			Model:     tc.Model,
			Sandbox:   tc.Sandbox,
			Approval:  tc.Approval,
		}, true, nil

	case "response_item":
		return decodeResponseItem(rec, line)

	case "event_msg":
		return decodeEventMsg(rec, line)

	default:
		return rawevent.NoteEvent(string(line)), true, nil
	}
}

func decodeResponseItem(rec rawRecord, line []byte) (rawevent.Event, bool, error) {
	var item responseItemPayload
	if err := json.Unmarshal(rec.Payload, &item); err != nil {
		return rawevent.NoteEvent(string(line)), true, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
	}

	switch item.Type {
	case "message":
		kind := rawevent.KindAssistant
		if item.Role == "user" {
			kind = rawevent.KindUser
		}
		return rawevent.Event{
			Kind:      kind,
			Timestamp: rec.Timestamp,
			Role:      item.Role,
			Text:      joinContent(item.Content),
		}, true, nil

	case "reasoning":
		return rawevent.Event{
			Kind:      rawevent.KindThinking,
			Timestamp: rec.Timestamp,
			Text:      joinContent(item.Content),
		}, true, nil

	case "function_call", "custom_tool_call", "local_shell_call":
		args := item.Arguments
		if len(args) == 0 {
			args = item.Input
		}
		return rawevent.Event{
			Kind:      rawevent.KindToolCall,
			Timestamp: rec.Timestamp,
			ToolName:  item.Name,
			ToolArgs:  rawText(args),
			CallID:    item.CallID,
		}, true, nil

	case "function_call_output", "custom_tool_call_output", "local_shell_call_output":
		return rawevent.Event{
			Kind:         rawevent.KindToolOutput,
			Timestamp:    rec.Timestamp,
			OutputCallID: item.CallID,
			Output:       string(item.Output),
		}, true, nil

	default:
		return rawevent.NoteEvent(string(line)), true, nil
	}
}

func decodeEventMsg(rec rawRecord, line []byte) (rawevent.Event, bool, error) {
	var msg eventMsgPayload
	if err := json.Unmarshal(rec.Payload, &msg); err != nil {
		return rawevent.NoteEvent(string(line)), true, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
	}

	if msg.Type == "token_count" {
		if msg.Info == nil {
			return rawevent.Event{}, false, nil
		}
		usage := msg.Info.LastTokenUsage
		if usage == nil {
			usage = msg.Info.TotalTokenUsage
		}
		if usage == nil {
			return rawevent.Event{}, false, nil
		}
		return rawevent.Event{
			Kind:              rawevent.KindTokenCount,
			Timestamp:         rec.Timestamp,
			InputTokens:       usage.InputTokens,
			CachedInputTokens: usage.CachedInputTokens,
			OutputTokens:      usage.OutputTokens,
			ReasoningTokens:   usage.ReasoningOutputTokens,
			TotalTokens:       usage.TotalTokens,
		}, true, nil
	}
	// Codex emits many streaming event_msg subtypes (agent_reasoning_delta,
	// exec_command_begin, ...) ccbox has no timeline slot for; those are
	// dropped silently rather than surfaced as Note, since they're frequent
	// and expected, not unrecognized in the sense the spec means.
	return rawevent.Event{}, false, nil
}

func joinContent(blocks []contentBlock) string {
	if len(blocks) == 1 {
		return blocks[0].Text
	}
	var out []byte
	for i, b := range blocks {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}

// rawText returns raw as text: a JSON string value is unquoted (Codex
// writes function_call arguments as a string holding the arguments
// object), anything else is returned verbatim.
func rawText(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// DecodeAll streams every line of r through DecodeLine, returning the
// decoded events plus a count of malformed lines (never a fatal error — a
// session file with a few bad lines still renders, each surfacing as a
// Note item in addition to being counted).
func DecodeAll(r io.Reader) (events []rawevent.Event, malformed int, err error) {
	bufPtr := scannerBufPool.Get().(*[]byte)
	defer scannerBufPool.Put(bufPtr)

	sc := bufio.NewScanner(r)
	sc.Buffer(*bufPtr, maxLineSize)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, ok, decErr := DecodeLine(line)
		if decErr != nil {
			malformed++
		}
		if ok {
			events = append(events, ev)
		}
	}
	if scErr := sc.Err(); scErr != nil {
		return events, malformed, fmt.Errorf("%w: %v", ccerr.ErrTruncatedStream, scErr)
	}
	return events, malformed, nil
}
