package cliapp

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/timeline"
)

// runSkills implements `ccbox skills [log-or-project]`: a summary of the
// recognized skill spans for one session, tab-separated by default or a
// JSON array with `--json`.
func runSkills(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("skills", stderr)
	id := fs.String("id", "", "session id to select explicitly")
	asJSON := fs.Bool("json", false, "print spans as a JSON array")
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

	if *asJSON {
		return printSkillsJSON(stdout, tl)
	}

	for _, span := range tl.Skills {
		fmt.Fprintf(stdout, "%s\t%d\t%d\n", span.SkillName, span.StartItem, span.EndItem)
	}
	if tl.LoopDetected {
		fmt.Fprintln(stderr, "ccbox: warning: loop_detected: consecutive repeated skill spans")
	}
	return nil
}

type skillSpanJSON struct {
	SkillName    string `json:"skill_name"`
	StartItem    int    `json:"start_item"`
	EndItem      int    `json:"end_item"`
	LoopDetected bool   `json:"loop_detected"`
}

func printSkillsJSON(stdout io.Writer, tl ccmodel.Timeline) error {
	out := make([]skillSpanJSON, 0, len(tl.Skills))
	for _, span := range tl.Skills {
		out = append(out, skillSpanJSON{
			SkillName:    span.SkillName,
			StartItem:    span.StartItem,
			EndItem:      span.EndItem,
			LoopDetected: tl.LoopDetected,
		})
	}
	enc := json.NewEncoder(stdout)
	return enc.Encode(out)
}
