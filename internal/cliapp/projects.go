package cliapp

import (
	"fmt"
	"io"

	"github.com/diskd-ai/ccbox/internal/index"
)

// runProjects implements `ccbox projects`: one tab-separated line per
// project, name/path/session_count, in the indexer's default order
// (last_modified descending).
func runProjects(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("projects", stderr)
	if err := parseArgs(fs, args); err != nil {
		return err
	}

	idx, err := buildIndexer()
	if err != nil {
		return err
	}
	reportRootErrors(idx, stderr)

	for _, p := range idx.Projects(index.Filter{}) {
		fmt.Fprintf(stdout, "%s\t%s\t%d\n", p.Name, p.Path, p.SessionCount)
	}
	return nil
}
