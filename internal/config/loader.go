package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	configDir  = "dirtree"
	configFile = "config.json"
)

// ConfigPath returns ~/.config/dirtree/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", configDir, configFile)
	}
	return filepath.Join(home, ".config", configDir, configFile)
}

// Load reads the config from ConfigPath(), falling back to defaults when the
// file does not exist.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. A missing file yields the defaults;
// values present in the file override them. DIRTREE_* environment variables
// are applied last.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		var sc saveConfig
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := mergeConfig(cfg, &sc); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.State.DBPath = ExpandPath(cfg.State.DBPath)
	cfg.Tree.Root = ExpandPath(cfg.Tree.Root)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig copies every value set in sc over cfg.
func mergeConfig(cfg *Config, sc *saveConfig) error {
	if sc.Tree.Root != "" {
		cfg.Tree.Root = sc.Tree.Root
	}
	if sc.Tree.RetentionThreshold != 0 {
		cfg.Tree.RetentionThreshold = sc.Tree.RetentionThreshold
	}
	if sc.Tree.HideDotfiles != nil {
		cfg.Tree.HideDotfiles = *sc.Tree.HideDotfiles
	}

	if sc.Monitor.Enabled != nil {
		cfg.Monitor.Enabled = *sc.Monitor.Enabled
	}
	if sc.Monitor.EventBuffer != 0 {
		cfg.Monitor.EventBuffer = sc.Monitor.EventBuffer
	}
	if sc.Monitor.WarnWatches != 0 {
		cfg.Monitor.WarnWatches = sc.Monitor.WarnWatches
	}
	if sc.Monitor.WarnFDs != 0 {
		cfg.Monitor.WarnFDs = sc.Monitor.WarnFDs
	}
	if sc.Monitor.CheckInterval != "" {
		d, err := time.ParseDuration(sc.Monitor.CheckInterval)
		if err != nil {
			return fmt.Errorf("monitor.checkInterval: %w", err)
		}
		cfg.Monitor.CheckInterval = d
	}

	if sc.State.Enabled != nil {
		cfg.State.Enabled = *sc.State.Enabled
	}
	if sc.State.DBPath != "" {
		cfg.State.DBPath = sc.State.DBPath
	}

	for action, keys := range sc.Keymap.Overrides {
		cfg.Keymap.Overrides[action] = keys
	}

	if sc.UI.ShowFooter != nil {
		cfg.UI.ShowFooter = *sc.UI.ShowFooter
	}
	if sc.UI.IndentWidth != 0 {
		cfg.UI.IndentWidth = sc.UI.IndentWidth
	}
	if sc.UI.Theme.Name != "" {
		cfg.UI.Theme.Name = sc.UI.Theme.Name
	}
	for key, color := range sc.UI.Theme.Overrides {
		cfg.UI.Theme.Overrides[key] = color
	}
	return nil
}

// applyEnv lets DIRTREE_ROOT, DIRTREE_HIDE_DOTFILES and DIRTREE_STATE_DB
// override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DIRTREE_ROOT"); v != "" {
		cfg.Tree.Root = v
	}
	if v := os.Getenv("DIRTREE_HIDE_DOTFILES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tree.HideDotfiles = b
		}
	}
	if v := os.Getenv("DIRTREE_STATE_DB"); v != "" {
		cfg.State.DBPath = v
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
