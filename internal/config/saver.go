package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func parseDuration(s string) (time.Duration, error) { return time.ParseDuration(s) }

// ConfigPath returns ~/.config/ccbox/config.json, honoring XDG_CONFIG_HOME.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccbox", "config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccbox", "config.json")
}

// saveConfig is the JSON-marshaling intermediary that uses string
// durations instead of time.Duration's nanosecond integer encoding, so
// the on-disk file reads as "250ms" rather than "250000000".
type saveConfig struct {
	Roots      RootsConfig     `json:"roots,omitempty"`
	Watcher    saveWatcher     `json:"watcher,omitempty"`
	Supervisor saveSupervisor  `json:"supervisor,omitempty"`
	Associate  saveAssociate   `json:"associate,omitempty"`
	UI         UIConfig        `json:"ui"`
}

type saveWatcher struct {
	DebounceInterval     string `json:"debounceInterval,omitempty"`
	OpenCodePollInterval string `json:"openCodePollInterval,omitempty"`
}

type saveSupervisor struct {
	TerminationGracePeriod string `json:"terminationGracePeriod,omitempty"`
}

type saveAssociate struct {
	Timeout string `json:"timeout,omitempty"`
}

func toSaveConfig(cfg *Config) saveConfig {
	return saveConfig{
		Roots: cfg.Roots,
		Watcher: saveWatcher{
			DebounceInterval:     cfg.Watcher.DebounceInterval.String(),
			OpenCodePollInterval: cfg.Watcher.OpenCodePollInterval.String(),
		},
		Supervisor: saveSupervisor{
			TerminationGracePeriod: cfg.Supervisor.TerminationGracePeriod.String(),
		},
		Associate: saveAssociate{
			Timeout: cfg.Associate.Timeout.String(),
		},
		UI: cfg.UI,
	}
}

func fromSaveConfig(sc saveConfig) (*Config, error) {
	cfg := Default()
	cfg.Roots = sc.Roots
	cfg.UI = sc.UI

	var err error
	if sc.Watcher.DebounceInterval != "" {
		if cfg.Watcher.DebounceInterval, err = parseDuration(sc.Watcher.DebounceInterval); err != nil {
			return nil, fmt.Errorf("config: watcher.debounceInterval: %w", err)
		}
	}
	if sc.Watcher.OpenCodePollInterval != "" {
		if cfg.Watcher.OpenCodePollInterval, err = parseDuration(sc.Watcher.OpenCodePollInterval); err != nil {
			return nil, fmt.Errorf("config: watcher.openCodePollInterval: %w", err)
		}
	}
	if sc.Supervisor.TerminationGracePeriod != "" {
		if cfg.Supervisor.TerminationGracePeriod, err = parseDuration(sc.Supervisor.TerminationGracePeriod); err != nil {
			return nil, fmt.Errorf("config: supervisor.terminationGracePeriod: %w", err)
		}
	}
	if sc.Associate.Timeout != "" {
		if cfg.Associate.Timeout, err = parseDuration(sc.Associate.Timeout); err != nil {
			return nil, fmt.Errorf("config: associate.timeout: %w", err)
		}
	}
	return cfg, nil
}

// Load reads ConfigPath(), falling back to Default() when the file does
// not exist. A present-but-malformed file is a hard error — silently
// ignoring a typo'd config would surprise the user more than failing.
func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var sc saveConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigPath(), err)
	}
	cfg, err := fromSaveConfig(sc)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to ConfigPath(), creating its parent directory as needed.
func Save(cfg *Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	sc := toSaveConfig(cfg)
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
