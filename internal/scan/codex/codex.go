// Package codex implements the Codex CLI Source for the Session Scanner.
// Grounded on wilbur182-forge's codex adapter: walk the sessions root,
// accept files whose first line parses as session_meta, and derive a
// title by streaming the rest of the file through the shared decoder.
package codex

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
	rawcodex "github.com/diskd-ai/ccbox/internal/rawevent/codex"
)

var scannerBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 64*1024)
		return &buf
	},
}

const maxLineSize = 1024 * 1024

// processesDirName is excluded from the walk: it holds ccbox's own
// supervised-process logs, not engine session files (spec.md §6).
const processesDirName = ".ccbox"

// Source discovers Codex session files under one sessions root.
type Source struct {
	sessionsDir string
}

// New builds a Source rooted at dir.
func New(dir string) *Source { return &Source{sessionsDir: dir} }

// NewDefault resolves the root from CODEX_SESSIONS_DIR or ~/.codex/sessions.
func NewDefault() *Source {
	home, _ := os.UserHomeDir()
	dir := os.Getenv("CODEX_SESSIONS_DIR")
	if dir == "" {
		dir = filepath.Join(home, ".codex", "sessions")
	}
	return New(dir)
}

func (s *Source) Engine() ccmodel.Engine { return ccmodel.EngineCodex }

func (s *Source) Root() (string, bool) {
	_, err := os.Stat(s.sessionsDir)
	return s.sessionsDir, err == nil
}

// Scan walks the sessions root and returns one SessionSummary per accepted
// file, plus a warnings count: files skipped due to read/parse errors and
// malformed lines met while scanning accepted files for a title.
func (s *Source) Scan() ([]ccmodel.SessionSummary, int, error) {
	var sessions []ccmodel.SessionSummary
	warnings := 0

	if _, err := os.Stat(s.sessionsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	err := filepath.WalkDir(s.sessionsDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			warnings++
			return nil
		}
		if d.IsDir() {
			if d.Name() == processesDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".jsonl") {
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
	if err != nil {
		return sessions, warnings, err
	}
	return sessions, warnings, nil
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

	if !sc.Scan() {
		return ccmodel.SessionSummary{}, 0, ccerr.ErrNotASession
	}
	meta, err := rawcodex.DecodeFirstLine(sc.Bytes())
	if err != nil {
		return ccmodel.SessionSummary{}, 0, err
	}

	var events []rawevent.Event
	warnings := 0
	for sc.Scan() && len(events) < 250 {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, ok, decErr := rawcodex.DecodeLine(append([]byte(nil), line...))
		if decErr != nil {
			warnings++
			continue
		}
		if ok {
			events = append(events, ev)
		}
	}

	title := rawevent.DeriveTitle(events)

	return ccmodel.SessionSummary{
		ID:            meta.SessionID,
		Engine:        ccmodel.EngineCodex,
		ProjectPath:   meta.CWD,
		StartedAt:     meta.Timestamp,
		Title:         title,
		LogPath:       path,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, warnings, nil
}
