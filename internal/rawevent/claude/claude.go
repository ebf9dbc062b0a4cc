// Package claude decodes Claude Code session JSONL lines into
// rawevent.Events. Each line is a standalone JSON object tagged by "type"
// ("user" | "assistant" | other housekeeping types ccbox ignores), holding
// a nested "message" object whose "content" is either a plain string or an
// array of typed content blocks (text / thinking / tool_use / tool_result).
package claude

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

// scannerBufPool recycles 1MB line buffers across session files.
var scannerBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 1024*1024)
		return &buf
	},
}

const maxLineSize = 10 * 1024 * 1024

type rawLine struct {
	Type      string      `json:"type"`
	UUID      string      `json:"uuid"`
	Timestamp time.Time   `json:"timestamp"`
	Message   *rawMessage `json:"message"`
	CWD       string      `json:"cwd"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens              int `json:"inputTokens"`
	OutputTokens             int `json:"outputTokens"`
	CacheReadInputTokens     int `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int `json:"cacheCreationInputTokens"`
}

// contentBlock covers the four block shapes Claude Code emits. Only the
// fields relevant to Type are populated; ToolUseInput/Content are kept raw
// since their schema is tool-specific.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// DecodeLine turns one JSONL line into one or more Events: a "user" or
// "assistant" line may expand into a message event plus one tool_call or
// tool_output event per content block. Malformed JSON and any other record
// type (e.g. "file-history-snapshot") surface as a single Kind=Note event
// instead of vanishing, per the decoder's never-fail-the-session contract.
func DecodeLine(line []byte) (events []rawevent.Event, err error) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return []rawevent.Event{rawevent.NoteEvent(string(line))}, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
	}
	if raw.Type != "user" && raw.Type != "assistant" || raw.Message == nil {
		return []rawevent.Event{rawevent.NoteEvent(string(line))}, nil
	}

	var blocks []contentBlock
	if len(raw.Message.Content) > 0 && raw.Message.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(raw.Message.Content, &text); err == nil {
			blocks = []contentBlock{{Type: "text", Text: text}}
		}
	} else if len(raw.Message.Content) > 0 {
		if err := json.Unmarshal(raw.Message.Content, &blocks); err != nil {
			return []rawevent.Event{rawevent.NoteEvent(string(line))}, fmt.Errorf("%w: %v", ccerr.ErrMalformedLine, err)
		}
	}

	kind := rawevent.KindAssistant
	if raw.Type == "user" {
		kind = rawevent.KindUser
	}

	var textParts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
		case "thinking":
			events = append(events, rawevent.Event{
				Kind:      rawevent.KindThinking,
				Timestamp: raw.Timestamp,
				Text:      b.Text,
			})
		case "tool_use":
			events = append(events, rawevent.Event{
				Kind:      rawevent.KindToolCall,
				Timestamp: raw.Timestamp,
				ToolName:  b.Name,
				ToolArgs:  string(b.Input),
				CallID:    b.ID,
			})
		case "tool_result":
			events = append(events, rawevent.Event{
				Kind:         rawevent.KindToolOutput,
				Timestamp:    raw.Timestamp,
				OutputCallID: b.ToolUseID,
				Output:       toolResultText(b),
			})
		}
	}

	if len(textParts) > 0 {
		ev := rawevent.Event{
			Kind:      kind,
			Timestamp: raw.Timestamp,
			Role:      raw.Message.Role,
			Text:      joinLines(textParts),
		}
		events = append([]rawevent.Event{ev}, events...)
	}

	if raw.Message.Usage != nil && kind == rawevent.KindAssistant {
		u := raw.Message.Usage
		events = append(events, rawevent.Event{
			Kind:              rawevent.KindTokenCount,
			Timestamp:         raw.Timestamp,
			InputTokens:       u.InputTokens,
			OutputTokens:      u.OutputTokens,
			CachedInputTokens: u.CacheReadInputTokens,
			TotalTokens:       u.InputTokens + u.OutputTokens,
		})
	}

	return events, nil
}

func toolResultText(b contentBlock) string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	return string(b.Content)
}

func joinLines(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

// DecodeAll streams every line of r into Events, counting malformed lines
// rather than aborting the whole session file on one bad record.
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
		evs, decErr := DecodeLine(line)
		if decErr != nil {
			malformed++
		}
		events = append(events, evs...)
	}
	if scErr := sc.Err(); scErr != nil {
		return events, malformed, fmt.Errorf("%w: %v", ccerr.ErrTruncatedStream, scErr)
	}
	return events, malformed, nil
}
