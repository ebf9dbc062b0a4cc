package timeline

import (
	"encoding/json"
	"strings"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
)

// skillToolNames are the tool names ccbox recognizes as wrapping a named
// "skill" invocation (spec.md §4.4 point 5, additive/best-effort).
var skillToolNames = map[string]bool{
	"skill": true,
	"Skill": true,
}

type skillArgs struct {
	Name      string `json:"name"`
	SkillName string `json:"skill_name"`
}

// detectSkills scans items for tool-call/tool-output pairs naming a
// skill and records their span. Consecutive top-level spans sharing a
// skill name flag loopDetected; failure to find any spans is not an
// error — assembly already succeeded.
func detectSkills(items []ccmodel.TimelineItem) (spans []ccmodel.SkillSpan, loopDetected bool) {
	callIndexToOutput := make(map[int]int)
	outputIndexByCallID := make(map[string]int)
	for i, item := range items {
		if item.Kind == ccmodel.KindToolOutput && item.ToolOutputCallID != "" {
			outputIndexByCallID[item.ToolOutputCallID] = i
		}
	}

	var lastSkillName string
	for i, item := range items {
		if item.Kind != ccmodel.KindToolCall || !skillToolNames[item.ToolName] {
			continue
		}
		name := skillName(item.ToolArgs)
		if name == "" {
			continue
		}
		end := i
		if outIdx, ok := outputIndexByCallID[item.CallID]; ok {
			end = outIdx
			callIndexToOutput[i] = outIdx
		}
		spans = append(spans, ccmodel.SkillSpan{SkillName: name, StartItem: i, EndItem: end})
		if name == lastSkillName {
			loopDetected = true
		}
		lastSkillName = name
	}
	return spans, loopDetected
}

func skillName(rawArgs string) string {
	if rawArgs == "" {
		return ""
	}
	var args skillArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return ""
	}
	if args.SkillName != "" {
		return args.SkillName
	}
	return strings.TrimSpace(args.Name)
}
