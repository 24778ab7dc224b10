package dirtree

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wilbur182/dirtree/internal/metadata"
	"github.com/wilbur182/dirtree/internal/monitor"
)

func TestCreated_KeepsSiblingsOrdered(t *testing.T) {
	env := newTestEnv(t)
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	rng := rand.New(rand.NewPCG(1, 2))
	const letters = "abcABCxyzXYZ_-0123"
	seen := map[string]bool{}
	for len(seen) < 60 {
		b := make([]byte, 1+rng.IntN(5))
		for i := range b {
			b[i] = letters[rng.IntN(len(letters))]
		}
		name := string(b)
		if seen[name] {
			continue
		}
		seen[name] = true
		mkdirs(t, env.root, name)
		env.apply(h, monitor.Created, name)
	}

	names := childNames(t, c, top)
	if len(names) != len(seen) {
		t.Fatalf("got %d children, want %d", len(names), len(seen))
	}
	for i := 1; i < len(names); i++ {
		if metadata.FoldName(names[i-1]) > metadata.FoldName(names[i]) {
			t.Errorf("%q sorts after %q", names[i-1], names[i])
		}
	}
}

func TestCreated_EqualNamesGoFirst(t *testing.T) {
	env := newTestEnv(t, "b")
	c := env.cache
	_ = c.Expand(top)

	// A node without metadata sorts by its name, which ties with "b".
	c.mu.Lock()
	topID, _ := c.nodeAt(top)
	tie, n := c.nodes.alloc()
	n.name = "b"
	c.insertSorted(topID, tie)
	pos, _ := c.positionOf(tie)
	c.mu.Unlock()

	if !pos.Equal(Position{0, 0}) {
		t.Errorf("tied node at %v, want 0:0", pos)
	}
}

func TestCreated_IgnoresFilesAndDuplicates(t *testing.T) {
	env := newTestEnv(t, "a")
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	sub := c.Subscribe()
	defer sub.Close()

	if err := os.WriteFile(filepath.Join(env.root, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env.apply(h, monitor.Created, "f.txt")
	env.apply(h, monitor.Created, "a")
	env.apply(h, monitor.Created, "vanished")
	env.apply(h, monitor.Deleted, "not-there")

	if got := childNames(t, c, top); !equalNames(got, []string{"a"}) {
		t.Errorf("children = %v, want [a]", got)
	}
	expectQuiet(t, sub)
}

func TestCreated_HiddenWhenDotfilesHidden(t *testing.T) {
	root := t.TempDir()
	w := newFakeWatcher()
	c := New(Options{
		Root:         root,
		HideDotfiles: true,
		Monitor:      w,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer c.Close()
	_ = c.Expand(top)

	mkdirs(t, root, ".cache")
	h := w.handleFor(t, root)
	c.mu.Lock()
	c.handleEvent(monitor.Event{Handle: h, Op: monitor.Created, Name: ".cache"})
	c.mu.Unlock()

	if !isLonePlaceholderAt(c, top) {
		t.Error("hidden directory should not be inserted")
	}
}

func TestDeleted_LastChildRestoresPlaceholder(t *testing.T) {
	env := newTestEnv(t, "only")
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	sub := c.Subscribe()
	defer sub.Close()

	if err := os.Remove(filepath.Join(env.root, "only")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	env.apply(h, monitor.Deleted, "only")

	if !isLonePlaceholderAt(c, top) {
		t.Fatalf("top should hold a lone placeholder, has %d children", c.NumChildren(top))
	}
	want := []Notification{
		{Deleted, Position{0, 0}},
		{Inserted, Position{0, 0}},
		{HasChildrenChanged, Position{0}},
	}
	got := collect(t, sub, len(want))
	for i := range want {
		if got[i].Kind != want[i].Kind || !got[i].Position.Equal(want[i].Position) {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}

	// A later arrival replaces the placeholder again.
	mkdirs(t, env.root, "next")
	env.apply(h, monitor.Created, "next")
	if got := childNames(t, c, top); !equalNames(got, []string{"next"}) || c.NumChildren(top) != 1 {
		t.Errorf("children = %v (%d slots), want [next]", got, c.NumChildren(top))
	}
}

func TestChanged_RefreshesMetadata(t *testing.T) {
	env := newTestEnv(t, "a")
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	sub := c.Subscribe()
	defer sub.Close()

	// Nothing changed on disk: no notification.
	env.apply(h, monitor.Changed, "a")
	expectQuiet(t, sub)

	if err := os.Chmod(filepath.Join(env.root, "a"), 0700); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	env.apply(h, monitor.Changed, "a")

	notes := collect(t, sub, 1)
	if notes[0].Kind != Changed || !notes[0].Position.Equal(Position{0, 0}) {
		t.Errorf("got %v, want changed(0:0)", notes[0])
	}
	// top and a; the superseded record for a is gone.
	if env.meta.Len() != 2 {
		t.Errorf("metadata records = %d, want 2", env.meta.Len())
	}
	if !isLonePlaceholderAt(c, Position{0, 0}) {
		t.Error("a should keep its placeholder")
	}
}

func TestChanged_LoadsMissingMetadata(t *testing.T) {
	env := newTestEnv(t)
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	// Plant a child whose metadata failed to load.
	c.mu.Lock()
	topID, _ := c.nodeAt(top)
	id, n := c.nodes.alloc()
	n.name = "late"
	c.insertSorted(topID, id)
	c.dropPlaceholder(topID)
	c.mu.Unlock()

	if c.HasChildren(Position{0, 0}) {
		t.Fatal("node without metadata should look childless")
	}

	mkdirs(t, env.root, "late")
	env.apply(h, monitor.Changed, "late")

	info, _ := c.Info(Position{0, 0})
	if !info.HasMetadata {
		t.Error("metadata should be loaded after a change")
	}
	if !isLonePlaceholderAt(c, Position{0, 0}) {
		t.Error("node should become expandable")
	}
}

func TestEvents_StaleHandleIgnored(t *testing.T) {
	env := newTestEnv(t, "a")
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)
	_ = c.Collapse(top)

	mkdirs(t, env.root, "b")
	env.apply(h, monitor.Created, "b")
	env.apply(h, monitor.Deleted, "a")
	env.apply(monitor.Handle(999), monitor.Created, "b")

	if !isLonePlaceholderAt(c, top) {
		t.Error("events on stale handles must not touch the tree")
	}
}

func TestDrain_AppliesQueuedEvents(t *testing.T) {
	env := newTestEnv(t)
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	sub := c.Subscribe()
	defer sub.Close()

	mkdirs(t, env.root, "x")
	env.watcher.events <- monitor.Event{Handle: h, Op: monitor.Created, Name: "x"}

	notes := collect(t, sub, 3)
	if notes[0].Kind != Inserted || !notes[0].Position.Equal(Position{0, 1}) {
		t.Errorf("got %v, want inserted(0:1)", notes[0])
	}
	if notes[2].Kind != Deleted || !notes[2].Position.Equal(Position{0, 0}) {
		t.Errorf("got %v, want deleted(0:0)", notes[2])
	}
	if got := childNames(t, c, top); !equalNames(got, []string{"x"}) {
		t.Errorf("children = %v, want [x]", got)
	}
}

func TestLiveMonitor(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon, err := monitor.New(monitor.Options{Logger: logger})
	if err != nil {
		t.Fatalf("monitor.New() = %v", err)
	}
	c := New(Options{Root: root, Monitor: mon, Logger: logger})
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Close()
	_ = c.Expand(top)
	collect(t, sub, 3)

	mkdirs(t, root, "b")
	waitForChildren(t, c, top, []string{"a", "b"})

	if err := os.Remove(filepath.Join(root, "a")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForChildren(t, c, top, []string{"b"})

	if err := os.Rename(filepath.Join(root, "b"), filepath.Join(root, "c")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitForChildren(t, c, top, []string{"c"})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if dirs, handles := mon.Stats(); dirs != 0 || handles != 0 {
		t.Errorf("monitor still watching %d dirs, %d handles", dirs, handles)
	}
}

func waitForChildren(t *testing.T, c *Cache, pos Position, want []string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var got []string
	for time.Now().Before(deadline) {
		got = childNames(t, c, pos)
		if equalNames(got, want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("children = %v, want %v", got, want)
}

func BenchmarkCreated(b *testing.B) {
	root := b.TempDir()
	w := newFakeWatcher()
	c := New(Options{
		Root:    root,
		Monitor: w,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer c.Close()
	_ = c.Expand(top)

	var h monitor.Handle
	for k := range w.dirs {
		h = k
	}
	names := make([]string, 200)
	for i := range names {
		names[i] = fmt.Sprintf("d%04d", (i*7919)%200)
		if err := os.Mkdir(filepath.Join(root, names[i]), 0755); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		name := names[i%len(names)]
		c.mu.Lock()
		c.handleEvent(monitor.Event{Handle: h, Op: monitor.Created, Name: name})
		c.handleEvent(monitor.Event{Handle: h, Op: monitor.Deleted, Name: name})
		c.mu.Unlock()
	}
}
