// Package claude implements the Claude Code Source for the Session
// Scanner: walk ~/.claude/projects/<encoded-path>/*.jsonl and extract a
// SessionSummary per file.
package claude

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
	rawclaude "github.com/diskd-ai/ccbox/internal/rawevent/claude"
)

var scannerBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 1024*1024)
		return &buf
	},
}

const maxLineSize = 10 * 1024 * 1024

// firstLineProbe is the subset of fields read to recover sessionId/cwd
// from the first record of a session file, independent of its type.
type firstLineProbe struct {
	SessionID string    `json:"sessionId"`
	CWD       string    `json:"cwd"`
	Timestamp time.Time `json:"timestamp"`
}

// Source discovers Claude Code session files under one projects root.
type Source struct {
	projectsDir string
}

// New builds a Source rooted at dir (the ~/.claude/projects equivalent).
func New(dir string) *Source { return &Source{projectsDir: dir} }

// NewDefault resolves the root from CLAUDE_PROJECTS_DIR or
// ~/.claude/projects.
func NewDefault() *Source {
	home, _ := os.UserHomeDir()
	dir := os.Getenv("CLAUDE_PROJECTS_DIR")
	if dir == "" {
		dir = filepath.Join(home, ".claude", "projects")
	}
	return New(dir)
}

func (s *Source) Engine() ccmodel.Engine { return ccmodel.EngineClaude }

func (s *Source) Root() (string, bool) {
	_, err := os.Stat(s.projectsDir)
	return s.projectsDir, err == nil
}

// Scan walks every project directory's *.jsonl files.
func (s *Source) Scan() ([]ccmodel.SessionSummary, int, error) {
	var sessions []ccmodel.SessionSummary
	warnings := 0

	if _, err := os.Stat(s.projectsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	err := filepath.WalkDir(s.projectsDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			warnings++
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			warnings++
			return nil
		}
		summary, w, err := scanFile(path, info)
		warnings += w
		if err != nil {
			warnings++
			return nil
		}
		sessions = append(sessions, summary)
		return nil
	})
	return sessions, warnings, err
}

func scanFile(path string, info os.FileInfo) (ccmodel.SessionSummary, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return ccmodel.SessionSummary{}, 0, err
	}
	defer f.Close()

	bufPtr := scannerBufPool.Get().(*[]byte)
	defer scannerBufPool.Put(bufPtr)

	sc := bufio.NewScanner(f)
	sc.Buffer(*bufPtr, maxLineSize)

	warnings := 0
	var sessionID, cwd string
	var startedAt time.Time
	var events []rawevent.Event

	for sc.Scan() && len(events) < 250 {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe firstLineProbe
		if err := json.Unmarshal(line, &probe); err == nil {
			if sessionID == "" && probe.SessionID != "" {
				sessionID = probe.SessionID
				startedAt = probe.Timestamp
			}
			if cwd == "" && probe.CWD != "" {
				cwd = probe.CWD
			}
		}
		evs, decErr := rawclaude.DecodeLine(append([]byte(nil), line...))
		if decErr != nil {
			warnings++
			continue
		}
		events = append(events, evs...)
	}
	if err := sc.Err(); err != nil {
		warnings++
	}

	if sessionID == "" {
		// Claude encodes the project path in the directory name but not
		// necessarily a stable session id in every record; fall back to
		// the file's base name (without extension) as the id.
		sessionID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}
	if startedAt.IsZero() {
		startedAt = info.ModTime()
	}

	title := rawevent.DeriveTitle(events)

	return ccmodel.SessionSummary{
		ID:            sessionID,
		Engine:        ccmodel.EngineClaude,
		ProjectPath:   cwd,
		StartedAt:     startedAt,
		Title:         title,
		LogPath:       path,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, warnings, nil
}
