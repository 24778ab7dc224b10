package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Tree    TreeConfig    `json:"tree"`
	Monitor MonitorConfig `json:"monitor"`
	State   StateConfig   `json:"state"`
	Keymap  KeymapConfig  `json:"keymap"`
	UI      UIConfig      `json:"ui"`
}

// TreeConfig configures the directory cache.
type TreeConfig struct {
	Root               string `json:"root"`               // directory shown as the top node, default "/"
	RetentionThreshold int    `json:"retentionThreshold"` // collapsed dirs with more children stay cached
	HideDotfiles       bool   `json:"hideDotfiles"`
}

// MonitorConfig configures live filesystem updates.
type MonitorConfig struct {
	Enabled       bool          `json:"enabled"`
	EventBuffer   int           `json:"eventBuffer"`
	WarnWatches   int           `json:"warnWatches"` // warn once this many directories are watched
	WarnFDs       int           `json:"warnFDs"`     // warn once the process holds this many descriptors
	CheckInterval time.Duration `json:"checkInterval"`
}

// StateConfig configures persistence of expanded directories.
type StateConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"` // supports ~ expansion
}

// KeymapConfig holds key binding overrides, keyed by action name.
type KeymapConfig struct {
	Overrides map[string]string `json:"overrides"`
}

// UIConfig configures the browser.
type UIConfig struct {
	ShowFooter  bool        `json:"showFooter"`
	IndentWidth int         `json:"indentWidth"`
	Theme       ThemeConfig `json:"theme"`
}

// ThemeConfig configures the color theme.
type ThemeConfig struct {
	Name      string            `json:"name"`
	Overrides map[string]string `json:"overrides"`
}

const (
	defaultRetentionThreshold = 128
	defaultEventBuffer        = 64
	defaultWarnWatches        = 512
	defaultWarnFDs            = 500
	defaultCheckInterval      = 10 * time.Second
	defaultIndentWidth        = 2
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			Root:               "/",
			RetentionThreshold: defaultRetentionThreshold,
		},
		Monitor: MonitorConfig{
			Enabled:       true,
			EventBuffer:   defaultEventBuffer,
			WarnWatches:   defaultWarnWatches,
			WarnFDs:       defaultWarnFDs,
			CheckInterval: defaultCheckInterval,
		},
		State: StateConfig{
			Enabled: true,
			DBPath:  "~/.local/state/dirtree/state.db",
		},
		Keymap: KeymapConfig{
			Overrides: make(map[string]string),
		},
		UI: UIConfig{
			ShowFooter:  true,
			IndentWidth: defaultIndentWidth,
			Theme: ThemeConfig{
				Name:      "default",
				Overrides: make(map[string]string),
			},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Tree.Root == "" {
		c.Tree.Root = "/"
	}
	if c.Tree.RetentionThreshold <= 0 {
		c.Tree.RetentionThreshold = defaultRetentionThreshold
	}
	if c.Monitor.EventBuffer <= 0 {
		c.Monitor.EventBuffer = defaultEventBuffer
	}
	if c.Monitor.WarnWatches <= 0 {
		c.Monitor.WarnWatches = defaultWarnWatches
	}
	if c.Monitor.WarnFDs <= 0 {
		c.Monitor.WarnFDs = defaultWarnFDs
	}
	if c.Monitor.CheckInterval <= 0 {
		c.Monitor.CheckInterval = defaultCheckInterval
	}
	if c.UI.IndentWidth <= 0 {
		c.UI.IndentWidth = defaultIndentWidth
	}
	if c.UI.Theme.Name == "" {
		c.UI.Theme.Name = "default"
	}
	if c.UI.Theme.Overrides == nil {
		c.UI.Theme.Overrides = make(map[string]string)
	}
	if c.Keymap.Overrides == nil {
		c.Keymap.Overrides = make(map[string]string)
	}
	return nil
}
