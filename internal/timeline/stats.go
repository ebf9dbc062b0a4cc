package timeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
)

// patchToolNames identifies ToolCall arguments scanned for apply_patch
// style file changes when deriving Stats.PatchChanges.
var patchToolNames = map[string]bool{
	"apply_patch": true,
	"edit":        true,
	"str_replace": true,
}

type patchArgs struct {
	Patch string `json:"patch"`
}

// deriveStats computes the "Session Stats" summary per spec.md §4.4:
// duration from the last offset, tokens from the last TokenCount item,
// tool outcomes tallied from ToolOutput.status, and apply_patch changes
// counted from matching ToolCall arguments.
func deriveStats(items []ccmodel.TimelineItem, lastTokenCount *rawevent.Event, lastOffset time.Duration) ccmodel.Stats {
	stats := ccmodel.Stats{Duration: lastOffset}

	if lastTokenCount != nil {
		stats.InputTokens = lastTokenCount.InputTokens
		stats.CachedTokens = lastTokenCount.CachedInputTokens
		stats.OutputTokens = lastTokenCount.OutputTokens
		stats.Reasoning = lastTokenCount.ReasoningTokens
		stats.TotalTokens = lastTokenCount.TotalTokens
	}

	for _, item := range items {
		switch item.Kind {
		case ccmodel.KindToolOutput:
			switch item.ToolStatus {
			case ccmodel.ToolStatusSuccess:
				stats.ToolOutcomes.Success++
			case ccmodel.ToolStatusError:
				stats.ToolOutcomes.Error++
			default:
				stats.ToolOutcomes.Unknown++
			}
		case ccmodel.KindToolCall:
			if patchToolNames[item.ToolName] && countsAsPatch(item.ToolArgs) {
				stats.PatchChanges++
			}
		}
	}

	return stats
}

// countsAsPatch reports whether a patch-style tool call's arguments carry
// a non-empty patch body, a loose heuristic since patch formats vary
// across engines (Codex's apply_patch payload vs. Claude's edit tool).
func countsAsPatch(rawArgs string) bool {
	if rawArgs == "" {
		return false
	}
	var args patchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err == nil && args.Patch != "" {
		return true
	}
	return strings.Contains(rawArgs, "*** Update File") || strings.Contains(rawArgs, "*** Add File")
}
