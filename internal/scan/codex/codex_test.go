package codex

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSessionFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestScanFindsSessionFilesRecursively(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "2026", "03", "15")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeSessionFile(t, sub, "rollout-abc.jsonl", []string{
		`{"timestamp":"2026-03-15T10:00:00Z","type":"session_meta","payload":{"id":"abc","cwd":"/home/user/proj","timestamp":"2026-03-15T10:00:00Z"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"fix the bug"}]}}`,
	})

	src := New(root)
	sessions, warnings, err := src.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if warnings != 0 {
		t.Fatalf("expected 0 warnings, got %d", warnings)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.ID != "abc" || s.ProjectPath != "/home/user/proj" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Title != "fix the bug" {
		t.Fatalf("expected derived title, got %q", s.Title)
	}
}

func TestScanSkipsProcessesDirectory(t *testing.T) {
	root := t.TempDir()
	procDir := filepath.Join(root, ".ccbox", "processes", "p1")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeSessionFile(t, procDir, "not-a-session.jsonl", []string{`{"type":"whatever"}`})

	src := New(root)
	sessions, _, err := src.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected the .ccbox/processes tree to be skipped, got %d sessions", len(sessions))
	}
}

func TestScanCountsNonSessionFileAsWarningNotError(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "not-a-rollout.jsonl", []string{`{"type":"turn_context","payload":{}}`})

	src := New(root)
	sessions, warnings, err := src.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions for a file missing session_meta, got %d", len(sessions))
	}
	if warnings != 1 {
		t.Fatalf("expected 1 warning, got %d", warnings)
	}
}

func TestScanMissingRootIsNotAnError(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "does-not-exist"))
	sessions, warnings, err := src.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if sessions != nil || warnings != 0 {
		t.Fatalf("expected empty result for missing root, got sessions=%v warnings=%d", sessions, warnings)
	}
}

func TestRootReportsExistence(t *testing.T) {
	root := t.TempDir()
	src := New(root)
	path, exists := src.Root()
	if !exists || path != root {
		t.Fatalf("Root() = (%q, %v), want (%q, true)", path, exists, root)
	}

	missing := New(filepath.Join(root, "nope"))
	if _, exists := missing.Root(); exists {
		t.Fatal("expected Root() to report non-existence for a missing directory")
	}
}

func TestNewDefaultHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEX_SESSIONS_DIR", dir)
	src := NewDefault()
	path, exists := src.Root()
	if path != dir || !exists {
		t.Fatalf("NewDefault() Root() = (%q, %v), want (%q, true)", path, exists, dir)
	}
}
