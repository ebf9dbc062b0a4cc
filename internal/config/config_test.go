package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Watcher.DebounceInterval != want.Watcher.DebounceInterval {
		t.Fatalf("expected default debounce interval, got %v", cfg.Watcher.DebounceInterval)
	}
	if cfg.Associate.Timeout != want.Associate.Timeout {
		t.Fatalf("expected default association timeout, got %v", cfg.Associate.Timeout)
	}
}

func TestSaveThenLoadRoundTripsRootsAndDurations(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Roots.CodexSessionsDir = "/custom/codex"
	cfg.Watcher.DebounceInterval = 500 * time.Millisecond
	cfg.Supervisor.TerminationGracePeriod = 10 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Roots.CodexSessionsDir != "/custom/codex" {
		t.Fatalf("expected roots to round-trip, got %q", loaded.Roots.CodexSessionsDir)
	}
	if loaded.Watcher.DebounceInterval != 500*time.Millisecond {
		t.Fatalf("expected debounce interval to round-trip, got %v", loaded.Watcher.DebounceInterval)
	}
	if loaded.Supervisor.TerminationGracePeriod != 10*time.Second {
		t.Fatalf("expected grace period to round-trip, got %v", loaded.Supervisor.TerminationGracePeriod)
	}
}

func TestConfigFileIsHumanReadableDurationStrings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := Save(Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "ccbox", "config.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(raw), `"250ms"`) {
		t.Fatalf("expected debounceInterval to be saved as a duration string, got: %s", raw)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "ccbox"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ccbox", "config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected error loading malformed config")
	}
}

func TestValidateClampsNonsensicalTunables(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	d := Default()
	if cfg.Watcher.DebounceInterval != d.Watcher.DebounceInterval {
		t.Fatalf("expected zero-value debounce interval clamped to default, got %v", cfg.Watcher.DebounceInterval)
	}
	if cfg.UI.Theme.Overrides == nil {
		t.Fatal("expected nil overrides map to be initialized")
	}
}
