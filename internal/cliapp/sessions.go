package cliapp

import (
	"fmt"
	"io"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/index"
)

// runSessions implements `ccbox sessions [project-path]`: newest-first,
// tab-separated started_at/session_id/title/[file_size_bytes/]log_path.
func runSessions(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("sessions", stderr)
	limit := fs.Int("limit", 10, "maximum number of sessions to print (0 = unlimited)")
	offset := fs.Int("offset", 0, "number of sessions to skip")
	showSize := fs.Bool("size", false, "include file_size_bytes column")
	engineFlag := fs.String("engine", "", "filter to one engine (codex, claude, gemini, opencode)")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	projectPath := fs.Arg(0)

	idx, err := buildIndexer()
	if err != nil {
		return err
	}
	reportRootErrors(idx, stderr)

	f := index.Filter{Engine: ccmodel.Engine(*engineFlag)}
	var sessions []ccmodel.SessionSummary
	if projectPath != "" {
		for _, p := range idx.Projects(f) {
			if p.Path == projectPath {
				sessions = append(sessions, p.Sessions...)
			}
		}
	} else {
		sessions = allSessions(idx, f)
	}

	page := paginateSessions(sessions, *offset, *limit)
	for _, s := range page {
		if *showSize {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%d\t%s\n",
				s.StartedAt.UTC().Format(time.RFC3339), s.ID, s.Title, s.FileSizeBytes, s.LogPath)
		} else {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n",
				s.StartedAt.UTC().Format(time.RFC3339), s.ID, s.Title, s.LogPath)
		}
	}
	return nil
}
