package codex

import (
	"errors"
	"strings"
	"testing"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

func TestDecodeFirstLine(t *testing.T) {
	line := []byte(`{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"id":"abc123","cwd":"/home/user/proj"}}`)
	ev, err := DecodeFirstLine(line)
	if err != nil {
		t.Fatalf("DecodeFirstLine: %v", err)
	}
	if ev.Kind != rawevent.KindSessionMeta || ev.SessionID != "abc123" || ev.CWD != "/home/user/proj" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeFirstLineRejectsNonMeta(t *testing.T) {
	line := []byte(`{"type":"turn_context","payload":{}}`)
	if _, err := DecodeFirstLine(line); err == nil {
		t.Fatal("expected error for non session_meta first line")
	}
}

func TestDecodeLineMessageRoles(t *testing.T) {
	userLine := []byte(`{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"hello"}]}}`)
	ev, ok, err := DecodeLine(userLine)
	if err != nil || !ok {
		t.Fatalf("DecodeLine: ok=%v err=%v", ok, err)
	}
	if ev.Kind != rawevent.KindUser || ev.Text != "hello" {
		t.Fatalf("unexpected user event: %+v", ev)
	}

	asstLine := []byte(`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hi there"}]}}`)
	ev, ok, err = DecodeLine(asstLine)
	if err != nil || !ok {
		t.Fatalf("DecodeLine: ok=%v err=%v", ok, err)
	}
	if ev.Kind != rawevent.KindAssistant {
		t.Fatalf("expected assistant kind, got %v", ev.Kind)
	}
}

func TestDecodeLineToolCallAndOutput(t *testing.T) {
	callLine := []byte(`{"type":"response_item","payload":{"type":"function_call","name":"shell","arguments":"{\"cmd\":\"ls\"}","call_id":"call_1"}}`)
	ev, ok, err := DecodeLine(callLine)
	if err != nil || !ok {
		t.Fatalf("DecodeLine call: ok=%v err=%v", ok, err)
	}
	if ev.Kind != rawevent.KindToolCall || ev.CallID != "call_1" || ev.ToolName != "shell" {
		t.Fatalf("unexpected tool call event: %+v", ev)
	}

	outLine := []byte(`{"type":"response_item","payload":{"type":"function_call_output","call_id":"call_1","output":"total 0"}}`)
	ev, ok, err = DecodeLine(outLine)
	if err != nil || !ok {
		t.Fatalf("DecodeLine output: ok=%v err=%v", ok, err)
	}
	if ev.Kind != rawevent.KindToolOutput || ev.OutputCallID != "call_1" {
		t.Fatalf("unexpected tool output event: %+v", ev)
	}
}

func TestDecodeLineUnknownTypeBecomesNote(t *testing.T) {
	line := []byte(`{"type":"some_future_type","payload":{}}`)
	ev, ok, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || ev.Kind != rawevent.KindNote {
		t.Fatalf("expected a Note event for unrecognized type, got ok=%v event %+v", ok, ev)
	}
	if ev.RawLine != string(line) {
		t.Fatalf("expected RawLine to carry the original line, got %q", ev.RawLine)
	}
}

func TestDecodeLineMalformedJSONBecomesNote(t *testing.T) {
	line := []byte(`{not json`)
	ev, ok, err := DecodeLine(line)
	if !errors.Is(err, ccerr.ErrMalformedLine) {
		t.Fatalf("expected error wrapping ErrMalformedLine, got %v", err)
	}
	if !ok || ev.Kind != rawevent.KindNote || ev.RawLine != string(line) {
		t.Fatalf("expected a Note event carrying the raw line, got ok=%v event %+v", ok, ev)
	}
}

func TestDecodeAllCountsMalformedLinesAndKeepsNoteItems(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"turn_context","payload":{"model":"gpt-5","sandbox_policy":"workspace-write","approval_policy":"on-request"}}`,
		`{not valid json at all`,
		`{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}}`,
	}, "\n")

	events, malformed, err := DecodeAll(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if malformed != 1 {
		t.Fatalf("expected 1 malformed line, got %d", malformed)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 decoded events (including the Note), got %d", len(events))
	}
	if events[0].Kind != rawevent.KindTurnContext {
		t.Fatalf("expected first event to be turn_context, got %v", events[0].Kind)
	}
	if events[1].Kind != rawevent.KindNote || events[1].RawLine != "{not valid json at all" {
		t.Fatalf("expected second event to be a Note carrying the malformed line, got %+v", events[1])
	}
	if events[2].Kind != rawevent.KindUser {
		t.Fatalf("expected third event to be user, got %v", events[2].Kind)
	}
}

