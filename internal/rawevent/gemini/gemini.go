// Package gemini decodes a Gemini CLI session file into rawevent.Events.
// Unlike Codex and Claude Code, a Gemini session is a single JSON document
// (not JSONL) holding a "messages" array; each message is tagged "user",
// "gemini", or "info" (an info message carries no conversational content
// and surfaces as a Note).
package gemini

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

type document struct {
	SessionID   string    `json:"sessionId"`
	ProjectHash string    `json:"projectHash"`
	CWD         string    `json:"cwd"`
	StartTime   time.Time `json:"startTime"`
	LastUpdated time.Time `json:"lastUpdated"`
	Messages    []message `json:"messages"`
}

type message struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"` // "user" | "gemini" | "info"
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Model     string     `json:"model"`
	Tokens    *tokens    `json:"tokens"`
	ToolCalls []toolCall `json:"toolCalls"`
	Thoughts  []thought  `json:"thoughts"`
}

type tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached"`
}

type toolCall struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
	Result json.RawMessage `json:"result"`
}

type thought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// DecodeDocument parses a whole Gemini session file into its session ID,
// recovered project path (from the document's own cwd field, when
// present; Gemini's directory layout otherwise hides it behind a one-way
// project-path hash), timestamps, and the ordered Events it contains.
func DecodeDocument(data []byte) (sessionID, cwd string, startTime, lastUpdated time.Time, events []rawevent.Event, err error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", "", time.Time{}, time.Time{}, nil, fmt.Errorf("%w: %v", ccerr.ErrNotASession, err)
	}
	if doc.SessionID == "" {
		return "", "", time.Time{}, time.Time{}, nil, ccerr.ErrNotASession
	}

	for _, msg := range doc.Messages {
		if msg.Type == "info" {
			events = append(events, rawevent.NoteEvent(msg.Content))
			continue
		}

		role := msg.Type
		kind := rawevent.KindUser
		if role == "gemini" {
			role = "assistant"
			kind = rawevent.KindAssistant
		}

		if msg.Content != "" {
			events = append(events, rawevent.Event{
				Kind:      kind,
				Timestamp: msg.Timestamp,
				Role:      role,
				Text:      msg.Content,
			})
		}

		for _, t := range msg.Thoughts {
			text := t.Subject
			if t.Description != "" {
				text = fmt.Sprintf("%s: %s", t.Subject, t.Description)
			}
			events = append(events, rawevent.Event{
				Kind:      rawevent.KindThinking,
				Timestamp: msg.Timestamp,
				Text:      text,
			})
		}

		for _, tc := range msg.ToolCalls {
			events = append(events, rawevent.Event{
				Kind:      rawevent.KindToolCall,
				Timestamp: msg.Timestamp,
				ToolName:  tc.Name,
				ToolArgs:  string(tc.Args),
				CallID:    tc.ID,
			})
			if len(tc.Result) > 0 {
				events = append(events, rawevent.Event{
					Kind:         rawevent.KindToolOutput,
					Timestamp:    msg.Timestamp,
					OutputCallID: tc.ID,
					Output:       string(tc.Result),
				})
			}
		}

		if msg.Tokens != nil {
			events = append(events, rawevent.Event{
				Kind:              rawevent.KindTokenCount,
				Timestamp:         msg.Timestamp,
				InputTokens:       msg.Tokens.Input,
				CachedInputTokens: msg.Tokens.Cached,
				OutputTokens:      msg.Tokens.Output,
				TotalTokens:       msg.Tokens.Input + msg.Tokens.Cached + msg.Tokens.Output,
			})
		}
	}

	return doc.SessionID, doc.CWD, doc.StartTime, doc.LastUpdated, events, nil
}
