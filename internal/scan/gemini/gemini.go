// Package gemini implements the Gemini CLI Source for the Session
// Scanner: walk ~/.gemini/tmp/<project-hash>/chats/session-*.json, each a
// single JSON document decoded in one pass.
package gemini

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/rawevent"
	rawgemini "github.com/diskd-ai/ccbox/internal/rawevent/gemini"
)

// Source discovers Gemini CLI session files under one ~/.gemini root.
type Source struct {
	geminiDir string
}

// New builds a Source rooted at dir (the ~/.gemini equivalent).
func New(dir string) *Source { return &Source{geminiDir: dir} }

// NewDefault resolves the root from CCBOX_GEMINI_DIR or ~/.gemini.
func NewDefault() *Source {
	home, _ := os.UserHomeDir()
	dir := os.Getenv("CCBOX_GEMINI_DIR")
	if dir == "" {
		dir = filepath.Join(home, ".gemini")
	}
	return New(dir)
}

func (s *Source) Engine() ccmodel.Engine { return ccmodel.EngineGemini }

func (s *Source) Root() (string, bool) {
	tmpDir := filepath.Join(s.geminiDir, "tmp")
	_, err := os.Stat(tmpDir)
	return tmpDir, err == nil
}

// Scan walks every project-hash directory's chats/session-*.json files.
func (s *Source) Scan() ([]ccmodel.SessionSummary, int, error) {
	tmpDir := filepath.Join(s.geminiDir, "tmp")
	var sessions []ccmodel.SessionSummary
	warnings := 0

	if _, err := os.Stat(tmpDir); err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	hashDirs, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, 0, err
	}

	for _, hd := range hashDirs {
		if !hd.IsDir() {
			continue
		}
		chatsDir := filepath.Join(tmpDir, hd.Name(), "chats")
		entries, err := os.ReadDir(chatsDir)
		if err != nil {
			continue // no chats dir for this hash: not an error
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
				continue
			}
			path := filepath.Join(chatsDir, name)
			info, err := e.Info()
			if err != nil {
				warnings++
				continue
			}
			summary, w, err := scanFile(path, info, hd.Name())
			warnings += w
			if err != nil {
				warnings++
				continue
			}
			sessions = append(sessions, summary)
		}
	}
	return sessions, warnings, nil
}

func scanFile(path string, info os.FileInfo, projectHash string) (ccmodel.SessionSummary, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ccmodel.SessionSummary{}, 0, err
	}

	sessionID, cwd, startTime, _, events, err := rawgemini.DecodeDocument(data)
	if err != nil {
		return ccmodel.SessionSummary{}, 0, err
	}

	scanEvents := events
	if len(scanEvents) > 250 {
		scanEvents = scanEvents[:250]
	}
	title := rawevent.DeriveTitle(scanEvents)

	if cwd == "" {
		// The on-disk layout hashes the project path one-way into the
		// directory name; without a cwd recorded in the document itself
		// there is no way to recover it, so the hash stands in as the
		// project identity (grouped correctly, just not human-readable).
		cwd = "gemini-project-" + projectHash
	}

	if startTime.IsZero() {
		startTime = info.ModTime()
	}

	return ccmodel.SessionSummary{
		ID:            sessionID,
		Engine:        ccmodel.EngineGemini,
		ProjectPath:   cwd,
		StartedAt:     startTime,
		Title:         title,
		LogPath:       path,
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
	}, 0, nil
}
