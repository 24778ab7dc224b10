package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/wilbur182/dirtree/internal/config"
	"github.com/wilbur182/dirtree/internal/state"
	"github.com/wilbur182/dirtree/internal/styles"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEffectiveVersion(t *testing.T) {
	if got := effectiveVersion("v1.2.3"); got != "v1.2.3" {
		t.Errorf("effectiveVersion(v1.2.3) = %q", got)
	}
	if got := effectiveVersion(""); got == "" {
		t.Error("effectiveVersion(\"\") should fall back to build info")
	}
}

func TestBuildCache(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Tree.Root = root

	for _, live := range []bool{false, true} {
		c, stats := buildCache(cfg, live, discard)
		if live != (stats != nil) {
			t.Errorf("live=%v: stats func present = %v", live, stats != nil)
		}
		top := c.Root().Child(0)
		if err := c.Expand(top); err != nil {
			t.Fatalf("Expand() = %v", err)
		}
		if _, ok := c.Lookup(top, "sub"); !ok {
			t.Errorf("live=%v: sub not found", live)
		}
		if got := c.Stats().Watches; live && got != 1 || !live && got != 0 {
			t.Errorf("live=%v: %d watches", live, got)
		}
		if stats != nil {
			if dirs, handles := stats(); dirs != 1 || handles != 1 {
				t.Errorf("monitor stats = (%d, %d), want (1, 1)", dirs, handles)
			}
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	}
}

func TestApplyTheme(t *testing.T) {
	defer styles.ApplyTheme("default", nil)

	tests := []struct {
		name string
		want string
	}{
		{"nord", "nord"},
		{"no-such-theme", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.UI.Theme.Name = tt.name
		if got := applyTheme(cfg, discard); got != tt.want {
			t.Errorf("applyTheme(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")
	cfg := config.Default()
	cfg.Tree.Root = "/srv"
	cfg.Tree.HideDotfiles = true

	got, err := saveConfig(path, cfg)
	if err != nil {
		t.Fatalf("saveConfig() = %v", err)
	}
	if got != path {
		t.Errorf("saveConfig() wrote %q, want %q", got, path)
	}

	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() = %v", err)
	}
	if loaded.Tree.Root != "/srv" || !loaded.Tree.HideDotfiles {
		t.Errorf("loaded tree config = %+v", loaded.Tree)
	}
}

func TestForgetState(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Tree.Root = root
	cfg.State.DBPath = filepath.Join(t.TempDir(), "state.db")

	ctx := context.Background()
	store, err := state.Open(cfg.State.DBPath)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	for _, dir := range []string{root, filepath.Join(root, "a")} {
		if err := store.MarkExpanded(ctx, root, dir); err != nil {
			t.Fatalf("MarkExpanded(%s) = %v", dir, err)
		}
	}
	if err := store.MarkExpanded(ctx, "/other", "/other"); err != nil {
		t.Fatalf("MarkExpanded(/other) = %v", err)
	}
	_ = store.Close()

	if err := forgetState(cfg); err != nil {
		t.Fatalf("forgetState() = %v", err)
	}

	store, err = state.Open(cfg.State.DBPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if got, _ := store.Expanded(ctx, root); len(got) != 0 {
		t.Errorf("Expanded(root) = %q, want none", got)
	}
	if got, _ := store.Expanded(ctx, "/other"); len(got) != 1 {
		t.Errorf("Expanded(/other) = %q, want one entry", got)
	}
}
