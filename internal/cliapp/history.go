package cliapp

import (
	"fmt"
	"io"
	"strings"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/timeline"
)

// runHistory implements `ccbox history [log-or-project]`: a readable
// timeline, one summary line per item, `--full` additionally indenting
// each item's full detail underneath.
func runHistory(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", stderr)
	id := fs.String("id", "", "session id to select explicitly")
	limit := fs.Int("limit", 10, "maximum number of items to print (0 = unlimited)")
	offset := fs.Int("offset", 0, "number of items to skip")
	full := fs.Bool("full", false, "print full detail indented under each summary line")
	showSize := fs.Bool("size", false, "print a session stats line to stderr")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	target := fs.Arg(0)

	idx, err := buildIndexer()
	if err != nil {
		return err
	}
	reportRootErrors(idx, stderr)

	session, err := resolveSession(idx, target, *id)
	if err != nil {
		return err
	}

	tl, err := timeline.ReadSession(session.ID, session.Engine, session.LogPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", session.LogPath, err)
	}
	if tl.Truncated {
		fmt.Fprintf(stderr, "ccbox: warning: %s: truncated stream\n", session.LogPath)
	}
	if tl.Warnings > 0 {
		fmt.Fprintf(stderr, "ccbox: warnings: %d\n", tl.Warnings)
	}

	for _, item := range paginateItems(tl.Items, *offset, *limit) {
		printHistoryItem(stdout, item, *full)
	}

	if *showSize {
		printStats(stderr, tl)
	}
	return nil
}

func printHistoryItem(stdout io.Writer, item ccmodel.TimelineItem, full bool) {
	fmt.Fprintf(stdout, "%8dms  %-12s %s\n", item.OffsetMS, item.KindLabel, item.Summary)
	if !full || item.Detail == "" {
		return
	}
	for _, line := range strings.Split(item.Detail, "\n") {
		fmt.Fprintf(stdout, "            %s\n", line)
	}
}

func printStats(stderr io.Writer, tl ccmodel.Timeline) {
	s := tl.Stats
	fmt.Fprintf(stderr, "stats: duration=%s tokens=%d(in=%d cached=%d out=%d reasoning=%d) tools(ok=%d err=%d unknown=%d) dangling_outputs=%d\n",
		s.Duration, s.TotalTokens, s.InputTokens, s.CachedTokens, s.OutputTokens, s.Reasoning,
		s.ToolOutcomes.Success, s.ToolOutcomes.Error, s.ToolOutcomes.Unknown, tl.DanglingOutputs)
}

func paginateItems(items []ccmodel.TimelineItem, offset, limit int) []ccmodel.TimelineItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
