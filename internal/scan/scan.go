// Package scan implements the Session Scanner (ccbox core component C2):
// per-engine discovery of candidate log files/rows under a root directory,
// streamed just far enough to extract a SessionSummary without loading a
// whole file into memory.
package scan

import (
	"os"
	"path/filepath"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	scanclaude "github.com/diskd-ai/ccbox/internal/scan/claude"
	scancodex "github.com/diskd-ai/ccbox/internal/scan/codex"
	scangemini "github.com/diskd-ai/ccbox/internal/scan/gemini"
	scanopencode "github.com/diskd-ai/ccbox/internal/scan/opencode"
)

// Source is one engine's discovery strategy. Scan never returns an error
// for a single unreadable/malformed file — those are folded into the
// warnings count — only for a root-level failure (root unreadable for a
// reason other than "does not exist").
type Source interface {
	Engine() ccmodel.Engine
	// Root reports the directory or file this source reads from, and
	// whether it currently exists (used by Detect-style callers and by
	// the watcher to decide whether to arm an fsnotify watch).
	Root() (path string, exists bool)
	Scan() (sessions []ccmodel.SessionSummary, warnings int, err error)
}

// envOrDefault mirrors the `{ENV | default}` root-resolution contract used
// throughout spec.md §4.2 for every engine's session root.
func envOrDefault(envVar, def string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}

func homeJoin(parts ...string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(append([]string{home}, parts...)...)
}

// exists reports whether path names an existing file or directory.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Sources builds the four engine Sources ccbox supports, in a stable order
// (codex, claude, gemini, opencode) so callers index them deterministically.
func Sources() []Source {
	return []Source{
		scancodex.NewDefault(),
		scanclaude.NewDefault(),
		scangemini.NewDefault(),
		scanopencode.NewDefault(),
	}
}

// ScanAll runs every source and concatenates the results, tolerating a
// source-level error by recording it in rootErrs under that source's
// engine rather than aborting the others (a broken OpenCode DB must not
// hide Codex/Claude sessions).
func ScanAll(sources []Source) (sessions []ccmodel.SessionSummary, warnings int, rootErrs map[ccmodel.Engine]error) {
	rootErrs = make(map[ccmodel.Engine]error)
	for _, src := range sources {
		sessionsForSource, w, err := src.Scan()
		warnings += w
		if err != nil {
			rootErrs[src.Engine()] = err
			continue
		}
		sessions = append(sessions, sessionsForSource...)
	}
	return sessions, warnings, rootErrs
}
