// Package overrides implements the per-user override store consulted by
// the Project Indexer: a JSON file mapping "<engine>:<session_id>" to an
// optional display title and/or project path, applied in memory without
// ever touching the underlying session log.
package overrides

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
)

// Override is one session's user-supplied display overrides.
type Override struct {
	Title       string `json:"title,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
}

// Store holds the parsed override file and reloads it on demand. Re-read
// is cheap (a single small JSON file) so callers re-read on every
// Refresh() rather than watching it, per SPEC_FULL.md §4.3.
type Store struct {
	path string
	mu   sync.RWMutex
	data map[string]Override
}

// key builds the "<engine>:<session_id>" lookup key.
func key(engine ccmodel.Engine, sessionID string) string {
	return fmt.Sprintf("%s:%s", engine, sessionID)
}

// DefaultPath returns ~/.ccbox/overrides.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ccbox", "overrides")
}

// New constructs a Store for path and performs the initial load. A
// missing file is not an error — it simply means no overrides exist yet.
func New(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]Override)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the override file from disk, replacing the in-memory
// map atomically so concurrent Get calls always see a consistent set.
func (s *Store) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.data = make(map[string]Override)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	data := make(map[string]Override)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing override store %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Get returns the override for (engine, sessionID), if any.
func (s *Store) Get(engine ccmodel.Engine, sessionID string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ov, ok := s.data[key(engine, sessionID)]
	return ov, ok
}

// Set records an override and persists the store immediately. Intended
// for a future admin command; out-of-band edits to the file are picked up
// by the next Reload regardless.
func (s *Store) Set(engine ccmodel.Engine, sessionID string, ov Override) error {
	s.mu.Lock()
	s.data[key(engine, sessionID)] = ov
	snapshot := make(map[string]Override, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	s.mu.Unlock()

	return write(s.path, snapshot)
}

func write(path string, data map[string]Override) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Apply mutates summary in place with any matching override, leaving it
// untouched if no override exists.
func Apply(s *Store, summary *ccmodel.SessionSummary) {
	if s == nil {
		return
	}
	ov, ok := s.Get(summary.Engine, summary.ID)
	if !ok {
		return
	}
	if ov.Title != "" {
		summary.Title = ov.Title
	}
	if ov.ProjectPath != "" {
		summary.ProjectPath = ov.ProjectPath
	}
}
