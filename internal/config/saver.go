package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// saveConfig is the JSON-marshaling intermediary that uses string durations.
type saveConfig struct {
	Tree    saveTreeConfig    `json:"tree"`
	Monitor saveMonitorConfig `json:"monitor"`
	State   saveStateConfig   `json:"state"`
	Keymap  KeymapConfig      `json:"keymap"`
	UI      saveUIConfig      `json:"ui"`
}

type saveTreeConfig struct {
	Root               string `json:"root,omitempty"`
	RetentionThreshold int    `json:"retentionThreshold,omitempty"`
	HideDotfiles       *bool  `json:"hideDotfiles,omitempty"`
}

type saveMonitorConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	EventBuffer   int    `json:"eventBuffer,omitempty"`
	WarnWatches   int    `json:"warnWatches,omitempty"`
	WarnFDs       int    `json:"warnFDs,omitempty"`
	CheckInterval string `json:"checkInterval,omitempty"`
}

type saveUIConfig struct {
	ShowFooter  *bool       `json:"showFooter,omitempty"`
	IndentWidth int         `json:"indentWidth,omitempty"`
	Theme       ThemeConfig `json:"theme"`
}

type saveStateConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	DBPath  string `json:"dbPath,omitempty"`
}

// toSaveConfig converts Config to the JSON-serializable format.
func toSaveConfig(cfg *Config) saveConfig {
	return saveConfig{
		Tree: saveTreeConfig{
			Root:               cfg.Tree.Root,
			RetentionThreshold: cfg.Tree.RetentionThreshold,
			HideDotfiles:       &cfg.Tree.HideDotfiles,
		},
		Monitor: saveMonitorConfig{
			Enabled:       &cfg.Monitor.Enabled,
			EventBuffer:   cfg.Monitor.EventBuffer,
			WarnWatches:   cfg.Monitor.WarnWatches,
			WarnFDs:       cfg.Monitor.WarnFDs,
			CheckInterval: cfg.Monitor.CheckInterval.String(),
		},
		State: saveStateConfig{
			Enabled: &cfg.State.Enabled,
			DBPath:  cfg.State.DBPath,
		},
		UI: saveUIConfig{
			ShowFooter:  &cfg.UI.ShowFooter,
			IndentWidth: cfg.UI.IndentWidth,
			Theme:       cfg.UI.Theme,
		},
		Keymap: cfg.Keymap,
	}
}

// Save writes the config to ConfigPath().
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sc := toSaveConfig(cfg)
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
