package dirtree

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wilbur182/dirtree/internal/metadata"
	"github.com/wilbur182/dirtree/internal/monitor"
)

// fakeWatcher records watch registrations; tests inject events directly.
type fakeWatcher struct {
	mu           sync.Mutex
	next         monitor.Handle
	dirs         map[monitor.Handle]string
	watchCalls   int
	unwatchCalls int
	failWatch    bool
	closed       bool
	events       chan monitor.Event
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		dirs:   make(map[monitor.Handle]string),
		events: make(chan monitor.Event, 16),
	}
}

func (f *fakeWatcher) Watch(dir string) (monitor.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchCalls++
	if f.failWatch {
		return 0, errors.New("watch refused")
	}
	f.next++
	f.dirs[f.next] = dir
	return f.next, nil
}

func (f *fakeWatcher) Unwatch(h monitor.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unwatchCalls++
	delete(f.dirs, h)
}

func (f *fakeWatcher) Events() <-chan monitor.Event { return f.events }

func (f *fakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// handleFor returns the live handle watching dir.
func (f *fakeWatcher) handleFor(t *testing.T, dir string) monitor.Handle {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, d := range f.dirs {
		if d == dir {
			return h
		}
	}
	t.Fatalf("no watch on %s", dir)
	return 0
}

func (f *fakeWatcher) watched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dirs)
}

type testEnv struct {
	root    string
	cache   *Cache
	watcher *fakeWatcher
	meta    *metadata.Provider
	reads   *int
}

// newTestEnv builds a cache rooted at a fresh temp dir holding the given
// subdirectories.
func newTestEnv(t *testing.T, dirs ...string) *testEnv {
	t.Helper()
	root := t.TempDir()
	mkdirs(t, root, dirs...)

	env := &testEnv{
		root:    root,
		watcher: newFakeWatcher(),
		meta:    metadata.NewProvider(),
		reads:   new(int),
	}
	env.cache = New(Options{
		Root:     root,
		Metadata: env.meta,
		Monitor:  env.watcher,
		ReadDir: func(dir string) ([]fs.DirEntry, error) {
			*env.reads++
			return os.ReadDir(dir)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = env.cache.Close() })
	return env
}

// apply feeds one event through the bridge the way the drain loop does.
func (e *testEnv) apply(h monitor.Handle, op monitor.Op, name string) {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	e.cache.handleEvent(monitor.Event{Handle: h, Op: op, Name: name})
}

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
}

// top is the Position of the configured root directory.
var top = Position{0}

// childNames lists the display names of pos's children, skipping placeholders.
func childNames(t *testing.T, c *Cache, pos Position) []string {
	t.Helper()
	var names []string
	for i := 0; i < c.NumChildren(pos); i++ {
		info, ok := c.Info(pos.Child(i))
		if !ok {
			t.Fatalf("Info(%v) failed", pos.Child(i))
		}
		if !info.Placeholder {
			names = append(names, info.DisplayName)
		}
	}
	return names
}

func isLonePlaceholderAt(c *Cache, pos Position) bool {
	if c.NumChildren(pos) != 1 {
		return false
	}
	info, ok := c.Info(pos.Child(0))
	return ok && info.Placeholder
}

// collect reads exactly n notifications or fails.
func collect(t *testing.T, sub *Subscription, n int) []Notification {
	t.Helper()
	var got []Notification
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case note, ok := <-sub.C:
			if !ok {
				t.Fatalf("subscription closed after %d notifications", len(got))
			}
			got = append(got, note)
		case <-deadline:
			t.Fatalf("timeout: got %d of %d notifications: %v", len(got), n, got)
		}
	}
	return got
}

// expectQuiet fails if a notification arrives within a short window.
func expectQuiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case note := <-sub.C:
		t.Errorf("unexpected notification %v", note)
	case <-time.After(50 * time.Millisecond):
	}
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
