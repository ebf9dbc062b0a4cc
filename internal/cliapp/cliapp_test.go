package cliapp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCodexSession writes a minimal Codex JSONL session file with one
// malformed line, exercising the warnings count end to end.
func writeCodexSession(t *testing.T, dir, name, id, cwd string, withMalformedLine bool) string {
	t.Helper()
	lines := []string{
		`{"timestamp":"2026-03-15T10:00:00Z","type":"session_meta","payload":{"id":"` + id + `","cwd":"` + cwd + `","timestamp":"2026-03-15T10:00:00Z"}}`,
		`{"timestamp":"2026-03-15T10:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"please fix the build"}]}}`,
		`{"timestamp":"2026-03-15T10:00:02Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"looking into it"}]}}`,
	}
	if withMalformedLine {
		lines = append(lines, `{not valid json`)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// setupIsolatedHome points config resolution and every engine root at a
// fresh temp tree so the test never touches the real user's filesystem,
// then writes a config.json pinning only the Codex root to codexDir.
func setupIsolatedHome(t *testing.T, codexDir string) {
	t.Helper()
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("CLAUDE_PROJECTS_DIR", t.TempDir())
	t.Setenv("CCBOX_GEMINI_DIR", t.TempDir())
	t.Setenv("CCBOX_OPENCODE_DB_PATH", filepath.Join(t.TempDir(), "missing.db"))

	cfgDir := filepath.Join(configHome, "ccbox")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	cfgJSON := `{"roots":{"codexSessionsDir":"` + codexDir + `"}}`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(cfgJSON), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
}

func TestRunProjectsListsDiscoveredProject(t *testing.T) {
	codexDir := t.TempDir()
	writeCodexSession(t, codexDir, "s1.jsonl", "sess-1", "/home/user/myproj", false)
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"projects"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "myproj") {
		t.Fatalf("expected project name in output, got: %s", stdout.String())
	}
}

func TestRunSessionsListsNewestFirst(t *testing.T) {
	codexDir := t.TempDir()
	writeCodexSession(t, codexDir, "s1.jsonl", "sess-older", "/home/user/myproj", false)
	// second file with a later started_at by using a different session id
	// and timestamp
	olderPath := filepath.Join(codexDir, "s2.jsonl")
	content := `{"timestamp":"2026-03-16T10:00:00Z","type":"session_meta","payload":{"id":"sess-newer","cwd":"/home/user/myproj","timestamp":"2026-03-16T10:00:00Z"}}
{"timestamp":"2026-03-16T10:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"second session"}]}}
`
	if err := os.WriteFile(olderPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"sessions"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 session lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "sess-newer") {
		t.Fatalf("expected newest session first (P8), got: %v", lines)
	}
}

func TestRunHistoryReportsWarningsForMalformedLines(t *testing.T) {
	codexDir := t.TempDir()
	writeCodexSession(t, codexDir, "s1.jsonl", "sess-1", "/home/user/myproj", true)
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"history", "--id", "sess-1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "warnings: 1") {
		t.Fatalf("expected stderr to report 1 warning, got: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "please fix the build") {
		t.Fatalf("expected history output to include the user message, got: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "{not valid json") {
		t.Fatalf("expected history output to include a Note item for the malformed line, got: %s", stdout.String())
	}
}

func TestRunHistoryUnknownIDIsDataError(t *testing.T) {
	codexDir := t.TempDir()
	writeCodexSession(t, codexDir, "s1.jsonl", "sess-1", "/home/user/myproj", false)
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"history", "--id", "does-not-exist"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 (data error), stderr = %s", code, stderr.String())
	}
}

func TestRunUnknownCommandIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2 (usage error)", code)
	}
}

func TestRunNoArgsPrintsUsageAndExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage text on stderr")
	}
}

func TestRunBadFlagIsUsageError(t *testing.T) {
	codexDir := t.TempDir()
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"sessions", "--not-a-real-flag"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2 for a bad flag", code)
	}
}

func TestRunSkillsDetectsSpanAndJSONFlag(t *testing.T) {
	codexDir := t.TempDir()
	lines := []string{
		`{"timestamp":"2026-03-15T10:00:00Z","type":"session_meta","payload":{"id":"sess-1","cwd":"/home/user/myproj","timestamp":"2026-03-15T10:00:00Z"}}`,
		`{"timestamp":"2026-03-15T10:00:01Z","type":"response_item","payload":{"type":"function_call","name":"skill","arguments":"{\"name\":\"code-review\"}","call_id":"c1"}}`,
		`{"timestamp":"2026-03-15T10:00:02Z","type":"response_item","payload":{"type":"function_call_output","call_id":"c1","output":"done"}}`,
	}
	if err := os.WriteFile(filepath.Join(codexDir, "s1.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"skills", "--id", "sess-1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "code-review") {
		t.Fatalf("expected skill span in output, got: %s", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"skills", "--id", "sess-1", "--json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"skill_name":"code-review"`) {
		t.Fatalf("expected JSON skill span, got: %s", stdout.String())
	}
}

func TestRunHistoryByProjectPathResolvesNewestSession(t *testing.T) {
	codexDir := t.TempDir()
	writeCodexSession(t, codexDir, "s1.jsonl", "sess-1", "/home/user/myproj", false)
	setupIsolatedHome(t, codexDir)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"history", "/home/user/myproj"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "please fix the build") {
		t.Fatalf("expected resolved session's history, got: %s", stdout.String())
	}
}
