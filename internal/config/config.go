// Package config holds ccbox's root configuration: engine session roots,
// watcher/association tunables, and UI preferences, loaded from
// ~/.config/ccbox/config.json with sensible defaults when absent.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Roots      RootsConfig      `json:"roots"`
	Watcher    WatcherConfig    `json:"watcher"`
	Supervisor SupervisorConfig `json:"supervisor"`
	Associate  AssociateConfig  `json:"associate"`
	UI         UIConfig         `json:"ui"`
}

// RootsConfig overrides the default per-engine session directories. An
// empty field means "use the engine's own environment-variable-then-
// default resolution" (see internal/scan/<engine>.NewDefault).
type RootsConfig struct {
	CodexSessionsDir  string `json:"codexSessionsDir,omitempty"`
	ClaudeProjectsDir string `json:"claudeProjectsDir,omitempty"`
	GeminiDir         string `json:"geminiDir,omitempty"`
	OpenCodeDBPath    string `json:"openCodeDbPath,omitempty"`
}

// WatcherConfig tunes the Directory Watcher (C5).
type WatcherConfig struct {
	DebounceInterval     time.Duration `json:"debounceInterval"`
	OpenCodePollInterval time.Duration `json:"openCodePollInterval"`
}

// SupervisorConfig tunes the Process Supervisor (C6).
type SupervisorConfig struct {
	TerminationGracePeriod time.Duration `json:"terminationGracePeriod"`
}

// AssociateConfig tunes Session Association (C7).
type AssociateConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// UIConfig configures UI appearance.
type UIConfig struct {
	ShowFooter bool        `json:"showFooter"`
	ShowClock  bool        `json:"showClock"`
	Theme      ThemeConfig `json:"theme"`
}

// ThemeConfig configures the color theme.
type ThemeConfig struct {
	Name      string            `json:"name"`
	Overrides map[string]string `json:"overrides"`
}

// Default returns the default configuration, matching spec.md's stated
// tunables: 250ms watcher debounce, 2s OpenCode poll, 5s termination
// grace period, 30s association timeout.
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			DebounceInterval:     250 * time.Millisecond,
			OpenCodePollInterval: 2 * time.Second,
		},
		Supervisor: SupervisorConfig{
			TerminationGracePeriod: 5 * time.Second,
		},
		Associate: AssociateConfig{
			Timeout: 30 * time.Second,
		},
		UI: UIConfig{
			ShowFooter: true,
			ShowClock:  true,
			Theme: ThemeConfig{
				Name:      "default",
				Overrides: make(map[string]string),
			},
		},
	}
}

// Validate clamps nonsensical tunables back to their defaults rather than
// failing startup over a malformed config file.
func (c *Config) Validate() error {
	d := Default()
	if c.Watcher.DebounceInterval <= 0 {
		c.Watcher.DebounceInterval = d.Watcher.DebounceInterval
	}
	if c.Watcher.OpenCodePollInterval <= 0 {
		c.Watcher.OpenCodePollInterval = d.Watcher.OpenCodePollInterval
	}
	if c.Supervisor.TerminationGracePeriod <= 0 {
		c.Supervisor.TerminationGracePeriod = d.Supervisor.TerminationGracePeriod
	}
	if c.Associate.Timeout <= 0 {
		c.Associate.Timeout = d.Associate.Timeout
	}
	if c.UI.Theme.Overrides == nil {
		c.UI.Theme.Overrides = make(map[string]string)
	}
	return nil
}
