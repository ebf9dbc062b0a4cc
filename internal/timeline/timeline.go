// Package timeline implements the Timeline Assembler (ccbox core
// component C4): streaming a single session's decoded events into an
// ordered TimelineItem list, grouped into turns, with tool calls paired
// to their outputs and summary statistics derived.
package timeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

const syntheticTurnZero = "turn-0"

// pendingCall tracks an unpaired ToolCall's position for later linking
// when its ToolOutput is decoded, since outputs may arrive before or
// after the call that produced them.
type pendingCall struct {
	itemIndex int
}

// Assemble converts events (already in session order) into a Timeline.
// origin is the session's start instant (session_meta.timestamp);
// malformed seeds Warnings with the parse-failure count the caller
// accumulated while streaming events out of the decoder (each decode
// failure also arrives here as a Kind=Note event; an OpenCode part row
// that fails to scan is counted without one); truncated carries
// whether the source ended mid-record.
func Assemble(sessionID string, engine ccmodel.Engine, origin time.Time, events []rawevent.Event, malformed int, truncated bool) ccmodel.Timeline {
	tl := ccmodel.Timeline{
		SessionID: sessionID,
		Engine:    engine,
		Warnings:  malformed,
		Truncated: truncated,
	}

	turnID := syntheticTurnZero
	var lastOffset time.Duration
	pairing := make(map[string]pendingCall)
	var danglingOutputs int
	var lastTokenCount *rawevent.Event

	for _, ev := range events {
		offset := lastOffset
		if !ev.Timestamp.IsZero() && !origin.IsZero() {
			if d := ev.Timestamp.Sub(origin); d > lastOffset {
				offset = d
			}
		}
		lastOffset = offset

		switch ev.Kind {
		case rawevent.KindSessionMeta:
			continue // establishes identity only, not a timeline item

		case rawevent.KindTurnContext:
			turnID = newTurnID(turnID)
			tl.Items = append(tl.Items, ccmodel.TimelineItem{
				TurnID:          turnID,
				OffsetMS:        offset.Milliseconds(),
				Kind:            ccmodel.KindTurnContext,
				KindLabel:       "turn_context",
				Summary:         rawevent.ClampSummary(ev.Model),
				Detail:          ev.Model,
				Model:           ev.Model,
				CWD:             ev.CWD,
				Sandbox:         ev.Sandbox,
				Approval:        ev.Approval,
				Personality:     ev.Personality,
				InstructionsLen: ev.InstructionsLen,
			})

		case rawevent.KindUser:
			if isDuplicateUser(tl.Items, ev.Text) {
				continue
			}
			tl.Items = append(tl.Items, textItem(turnID, offset, ccmodel.KindUser, "user", ev.Text))

		case rawevent.KindAssistant:
			tl.Items = append(tl.Items, textItem(turnID, offset, ccmodel.KindAssistant, "assistant", ev.Text))

		case rawevent.KindThinking:
			tl.Items = append(tl.Items, textItem(turnID, offset, ccmodel.KindThinking, "thinking", ev.Text))

		case rawevent.KindToolCall:
			item := ccmodel.TimelineItem{
				TurnID:      turnID,
				OffsetMS:    offset.Milliseconds(),
				Kind:        ccmodel.KindToolCall,
				KindLabel:   "tool_call",
				Summary:     rawevent.ClampSummary(ev.ToolName),
				Detail:      ev.ToolArgs,
				ToolName:    ev.ToolName,
				ToolArgs:    ev.ToolArgs,
				CallID:      ev.CallID,
				ToolStarted: ev.Timestamp,
			}
			tl.Items = append(tl.Items, item)
			if ev.CallID != "" {
				pairing[ev.CallID] = pendingCall{itemIndex: len(tl.Items) - 1}
			}

		case rawevent.KindToolOutput:
			status := classifyToolStatus(ev)
			outputItem := ccmodel.TimelineItem{
				TurnID:           turnID,
				OffsetMS:         offset.Milliseconds(),
				Kind:             ccmodel.KindToolOutput,
				KindLabel:        "tool_output",
				Summary:          rawevent.ClampSummary(ev.Output),
				Detail:           ev.Output,
				ToolOutputCallID: ev.OutputCallID,
				ToolStatus:       status,
			}
			if call, ok := pairing[ev.OutputCallID]; ok {
				outputItem.ToolDuration = toolDuration(tl.Items[call.itemIndex].ToolStarted, ev.Timestamp)
				delete(pairing, ev.OutputCallID)
			} else if ev.OutputCallID != "" {
				danglingOutputs++
			}
			tl.Items = append(tl.Items, outputItem)

		case rawevent.KindTokenCount:
			evCopy := ev
			lastTokenCount = &evCopy
			tl.Items = append(tl.Items, ccmodel.TimelineItem{
				TurnID:            turnID,
				OffsetMS:          offset.Milliseconds(),
				Kind:              ccmodel.KindTokenCount,
				KindLabel:         "token_count",
				Summary:           "token usage",
				InputTokens:       ev.InputTokens,
				CachedInputTokens: ev.CachedInputTokens,
				OutputTokens:      ev.OutputTokens,
				ReasoningTokens:   ev.ReasoningTokens,
				TotalTokens:       ev.TotalTokens,
			})

		case rawevent.KindNote:
			// Warnings is already seeded from the decoder's malformed count
			// (the source of every Note that came from a parse failure);
			// Notes for merely-unrecognized-but-well-formed shapes don't
			// add a second warning for the same line.
			tl.Items = append(tl.Items, ccmodel.TimelineItem{
				TurnID:    turnID,
				OffsetMS:  offset.Milliseconds(),
				Kind:      ccmodel.KindNote,
				KindLabel: "note",
				Summary:   rawevent.ClampSummary(ev.RawLine),
				Detail:    ev.RawLine,
				Text:      ev.RawLine,
			})
		}
	}

	tl.DanglingOutputs = danglingOutputs
	tl.Turns = groupTurns(tl.Items)
	tl.Skills, tl.LoopDetected = detectSkills(tl.Items)
	tl.Stats = deriveStats(tl.Items, lastTokenCount, lastOffset)

	return tl
}

func textItem(turnID string, offset time.Duration, kind ccmodel.TimelineItemKind, label, text string) ccmodel.TimelineItem {
	return ccmodel.TimelineItem{
		TurnID:    turnID,
		OffsetMS:  offset.Milliseconds(),
		Kind:      kind,
		KindLabel: label,
		Summary:   rawevent.ClampSummary(text),
		Detail:    text,
		Text:      text,
	}
}

// isDuplicateUser implements P4: drop a user message byte-identical to
// the immediately preceding user item (consecutive, not merely "seen
// before"), observed in aborted/retried turns.
func isDuplicateUser(items []ccmodel.TimelineItem, text string) bool {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind != ccmodel.KindUser {
			return false
		}
		return items[i].Text == text
	}
	return false
}

// newTurnID derives the next turn identifier from the previous one. Turn
// ids are opaque to callers; ccbox numbers them sequentially rather than
// keying off engine-specific turn identifiers, since Claude/Gemini/
// OpenCode don't all expose a stable turn id the way Codex does.
func newTurnID(prev string) string {
	n := 1
	if strings.HasPrefix(prev, "turn-") {
		if v, err := strconv.Atoi(prev[len("turn-"):]); err == nil {
			n = v + 1
		}
	}
	return "turn-" + strconv.Itoa(n)
}

func classifyToolStatus(ev rawevent.Event) ccmodel.ToolStatus {
	switch strings.ToLower(ev.Status) {
	case "error", "failed":
		return ccmodel.ToolStatusError
	case "success", "completed", "ok":
		return ccmodel.ToolStatusSuccess
	default:
		return ccmodel.ToolStatusUnknown
	}
}

func toolDuration(started, ended time.Time) time.Duration {
	if started.IsZero() || ended.IsZero() || ended.Before(started) {
		return 0
	}
	return ended.Sub(started)
}

func groupTurns(items []ccmodel.TimelineItem) []ccmodel.Turn {
	var turns []ccmodel.Turn
	var current *ccmodel.Turn
	for _, item := range items {
		if current == nil || current.ID != item.TurnID {
			turns = append(turns, ccmodel.Turn{ID: item.TurnID})
			current = &turns[len(turns)-1]
		}
		current.Items = append(current.Items, item)
	}
	return turns
}
