package cliapp

import (
	"fmt"
	"io"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/index"
)

// reportRootErrors prints a warning line per engine root that failed to
// scan (spec.md §7's IoError: "counted and surfaced... never fatal unless
// it is the configured sessions root itself"); a broken OpenCode database
// must not hide Codex/Claude sessions, so this is advisory only.
func reportRootErrors(idx *index.Indexer, stderr io.Writer) {
	for engine, err := range idx.RootErrors() {
		fmt.Fprintf(stderr, "ccbox: warning: %s: %v\n", engine, err)
	}
	if w := idx.Warnings(); w > 0 {
		fmt.Fprintf(stderr, "ccbox: warning: %d malformed row(s) skipped during scan\n", w)
	}
}

// resolveSession implements the shared "log-or-project" positional
// argument accepted by `history` and `skills`: target may name an exact
// log path (as printed by `sessions`), a project path (in which case the
// newest session under it is used), or be empty (newest session overall).
// id, when set, narrows the search to a single session by id and wins
// over target's path interpretation.
func resolveSession(idx *index.Indexer, target, id string) (ccmodel.SessionSummary, error) {
	sessions := allSessions(idx, index.Filter{})

	if id != "" {
		for _, s := range sessions {
			if s.ID == id {
				return s, nil
			}
		}
		return ccmodel.SessionSummary{}, fmt.Errorf("no session with id %q", id)
	}

	if target == "" {
		if len(sessions) == 0 {
			return ccmodel.SessionSummary{}, fmt.Errorf("no sessions found")
		}
		return sessions[0], nil
	}

	for _, s := range sessions {
		if s.LogPath == target {
			return s, nil
		}
	}

	for _, s := range sessions {
		if s.ProjectPath == target {
			return s, nil // sessions is sorted newest-first
		}
	}

	return ccmodel.SessionSummary{}, fmt.Errorf("no session or project found at %q", target)
}
