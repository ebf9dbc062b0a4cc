// Package cliapp implements ccbox's stable CLI surface (spec.md §6): the
// projects/sessions/history/skills subcommands consumed by external
// collaborator scripts, as opposed to the interactive TUI.
package cliapp

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/index"
	"github.com/diskd-ai/ccbox/internal/overrides"
	"github.com/diskd-ai/ccbox/internal/scan"
	scanclaude "github.com/diskd-ai/ccbox/internal/scan/claude"
	scancodex "github.com/diskd-ai/ccbox/internal/scan/codex"
	scangemini "github.com/diskd-ai/ccbox/internal/scan/gemini"
	scanopencode "github.com/diskd-ai/ccbox/internal/scan/opencode"
)

const usage = `usage: ccbox <command> [flags]

commands:
  projects                         list known projects
  sessions [project-path]          list sessions, newest first
  history [log-or-project]         print a session's timeline
  skills [log-or-project]          print a session's recognized skill spans`

// Run dispatches args (os.Args[1:]) to the matching subcommand and
// returns the process exit code: 0 success, 2 argument error, 1 data
// error. It never calls os.Exit itself so tests can drive it directly.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	var run func([]string, io.Writer, io.Writer) error
	switch cmd {
	case "projects":
		run = runProjects
	case "sessions":
		run = runSessions
	case "history":
		run = runHistory
	case "skills":
		run = runSkills
	case "-h", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "ccbox: unknown command %q\n%s\n", cmd, usage)
		return 2
	}

	if err := run(rest, newPipeWriter(stdout), stderr); err != nil {
		fmt.Fprintf(stderr, "ccbox: %v\n", err)
		if errors.Is(err, ccerr.ErrArgError) {
			return 2
		}
		return 1
	}
	return 0
}

// buildIndexer wires the Project Indexer from the on-disk config,
// honoring any root overrides it specifies and falling back to each
// engine's own environment-variable-then-default resolution otherwise.
func buildIndexer() (*index.Indexer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return index.New(sourcesFromConfig(cfg), overrides.DefaultPath())
}

func sourcesFromConfig(cfg *config.Config) []scan.Source {
	r := cfg.Roots
	return []scan.Source{codexSource(r), claudeSource(r), geminiSource(r), opencodeSource(r)}
}

func codexSource(r config.RootsConfig) scan.Source {
	if r.CodexSessionsDir != "" {
		return scancodex.New(r.CodexSessionsDir)
	}
	return scancodex.NewDefault()
}

func claudeSource(r config.RootsConfig) scan.Source {
	if r.ClaudeProjectsDir != "" {
		return scanclaude.New(r.ClaudeProjectsDir)
	}
	return scanclaude.NewDefault()
}

func geminiSource(r config.RootsConfig) scan.Source {
	if r.GeminiDir != "" {
		return scangemini.New(r.GeminiDir)
	}
	return scangemini.NewDefault()
}

func opencodeSource(r config.RootsConfig) scan.Source {
	if r.OpenCodeDBPath != "" {
		return scanopencode.New(r.OpenCodeDBPath)
	}
	return scanopencode.NewDefault()
}

// allSessions flattens every project's sessions, sorted per P8: started_at
// descending, ties by session_id ascending.
func allSessions(idx *index.Indexer, f index.Filter) []ccmodel.SessionSummary {
	var sessions []ccmodel.SessionSummary
	for _, p := range idx.Projects(f) {
		sessions = append(sessions, p.Sessions...)
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})
	return sessions
}

func paginateSessions(sessions []ccmodel.SessionSummary, offset, limit int) []ccmodel.SessionSummary {
	if offset >= len(sessions) {
		return nil
	}
	sessions = sessions[offset:]
	if limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}
	return sessions
}

// newFlagSet builds a FlagSet whose parse errors are returned to the
// caller as ccerr.ErrArgError rather than printed-and-os.Exit(2), which
// is what flag.ExitOnError would do.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseArgs(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return fmt.Errorf("%w: %v", ccerr.ErrArgError, err)
	}
	return nil
}
