package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	xterm "golang.org/x/term"

	"github.com/wilbur182/dirtree/internal/browser"
	"github.com/wilbur182/dirtree/internal/config"
	"github.com/wilbur182/dirtree/internal/dirtree"
	"github.com/wilbur182/dirtree/internal/monitor"
	"github.com/wilbur182/dirtree/internal/state"
	"github.com/wilbur182/dirtree/internal/styles"
)

// Version is set at build time via ldflags
var Version = ""

var (
	configPath   = flag.String("config", "", "path to config file")
	rootFlag     = flag.String("root", "", "directory shown as the top of the tree (overrides config)")
	debugFlag    = flag.Bool("debug", false, "enable debug logging")
	versionFlag  = flag.Bool("version", false, "print version and exit")
	shortVersion = flag.Bool("v", false, "print version and exit (short)")
	printFlag    = flag.Bool("print", false, "print the tree and exit instead of browsing")
	depthFlag    = flag.Int("depth", 2, "levels to print with -print")
	writeConfig  = flag.Bool("write-config", false, "write the effective config to the config file and exit")
	forgetFlag   = flag.Bool("forget", false, "forget the expanded directories recorded for the root and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run does the work of main and returns the exit code, so deferred cleanup
// runs before the process exits.
func run() int {
	if *versionFlag || *shortVersion {
		fmt.Printf("dirtree version %s\n", effectiveVersion(Version))
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *rootFlag != "" {
		root, err := filepath.Abs(config.ExpandPath(*rootFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve root: %v\n", err)
			return 1
		}
		cfg.Tree.Root = root
	}

	if *writeConfig {
		path, err := saveConfig(*configPath, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			return 1
		}
		fmt.Printf("Wrote %s\n", path)
		return 0
	}
	if *forgetFlag {
		if err := forgetState(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to forget state: %v\n", err)
			return 1
		}
		return 0
	}

	// Without a terminal there is nothing to browse.
	printMode := *printFlag || !xterm.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog := newLogger(*debugFlag, printMode)
	defer closeLog()

	applyTheme(cfg, logger)

	var watchStats func() (int, int)
	shared := dirtree.NewShared(func() (*dirtree.Cache, error) {
		var c *dirtree.Cache
		c, watchStats = buildCache(cfg, !printMode, logger)
		return c, nil
	})
	cache, err := shared.Acquire()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build tree: %v\n", err)
		return 1
	}
	defer func() { _ = shared.Release() }()

	if printMode {
		if err := browser.Print(os.Stdout, cache, *depthFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := runBrowser(cfg, cache, watchStats, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// newLogger logs to stderr in print mode. The browser owns the terminal, so
// there debug logs go to a file next to the state database and everything
// else is dropped.
func newLogger(debugOn, printMode bool) (*slog.Logger, func()) {
	logLevel := slog.LevelInfo
	if debugOn {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	if printMode {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}
	}
	if !debugOn {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	path := debugLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	f, err := tea.LogToFile(path, "")
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewTextHandler(f, opts)), func() { _ = f.Close() }
}

func debugLogPath() string {
	return config.ExpandPath("~/.local/state/dirtree/debug.log")
}

// saveConfig writes cfg to path, or to the default location when path is
// empty, and returns where it went.
func saveConfig(path string, cfg *config.Config) (string, error) {
	if path == "" {
		return config.ConfigPath(), config.Save(cfg)
	}
	return path, config.SaveTo(path, cfg)
}

// forgetState drops the expanded directories recorded for cfg's root.
func forgetState(cfg *config.Config) error {
	root, err := filepath.Abs(cfg.Tree.Root)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.State.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.Forget(ctx, root)
}

// applyTheme applies the configured theme, falling back to the default for
// unknown names, and returns the active theme's name.
func applyTheme(cfg *config.Config, logger *slog.Logger) string {
	name := cfg.UI.Theme.Name
	if !styles.IsValidTheme(name) {
		logger.Warn("unknown theme, using default", "theme", name, "available", styles.ListThemes())
		name = "default"
	}
	styles.ApplyTheme(name, cfg.UI.Theme.Overrides)
	current := styles.GetCurrentThemeName()
	logger.Debug("theme applied", "theme", current)
	return current
}

// buildCache creates the tree cache, with live updates when requested and
// enabled in cfg. A monitor that cannot start only disables live updates.
// The returned stats func reports the monitor's watches; it is nil without
// one.
func buildCache(cfg *config.Config, live bool, logger *slog.Logger) (*dirtree.Cache, func() (int, int)) {
	var mon dirtree.Watcher
	var stats func() (int, int)
	if live && cfg.Monitor.Enabled {
		m, err := monitor.New(monitor.Options{
			EventBuffer: cfg.Monitor.EventBuffer,
			Budget: monitor.Budget{
				WarnWatches:   cfg.Monitor.WarnWatches,
				WarnFDs:       cfg.Monitor.WarnFDs,
				CheckInterval: cfg.Monitor.CheckInterval,
			},
			Logger: logger,
		})
		if err != nil {
			logger.Warn("live updates disabled", "err", err)
		} else {
			mon = m
			stats = m.Stats
		}
	}

	c := dirtree.New(dirtree.Options{
		Root:               cfg.Tree.Root,
		RetentionThreshold: cfg.Tree.RetentionThreshold,
		HideDotfiles:       cfg.Tree.HideDotfiles,
		Monitor:            mon,
		Logger:             logger,
	})
	return c, stats
}

func runBrowser(cfg *config.Config, cache *dirtree.Cache, watchStats func() (int, int), logger *slog.Logger) error {
	opts := browser.Options{
		Keymap:      cfg.Keymap.Overrides,
		ShowFooter:  cfg.UI.ShowFooter,
		IndentWidth: cfg.UI.IndentWidth,
		WatchStats:  watchStats,
		Logger:      logger,
	}
	if cfg.State.Enabled {
		// State is optional; the browser works without it.
		store, err := state.Open(cfg.State.DBPath)
		if err != nil {
			logger.Warn("state store unavailable", "err", err)
		} else {
			defer store.Close()
			opts.State = store
		}
	}

	model := browser.New(cache, opts)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// effectiveVersion returns the version string, with fallback to build info.
func effectiveVersion(v string) string {
	if v != "" {
		return v
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	// Fall back to VCS info
	var revision string
	var dirty bool

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	if revision != "" {
		ver := "devel+" + revision
		if len(ver) > 20 {
			ver = ver[:20]
		}
		if dirty {
			ver += "+dirty"
		}
		return ver
	}

	return "devel"
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dirtree [options]\n\n")
		fmt.Fprintf(os.Stderr, "Browse a directory tree that follows filesystem changes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
}
