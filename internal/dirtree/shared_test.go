package dirtree

import (
	"errors"
	"testing"
)

func TestShared_Lifecycle(t *testing.T) {
	root := t.TempDir()
	builds := 0
	var last *fakeWatcher
	s := NewShared(func() (*Cache, error) {
		builds++
		last = newFakeWatcher()
		return New(Options{Root: root, Monitor: last}), nil
	})

	a, err := s.Acquire()
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	b, _ := s.Acquire()
	if a != b {
		t.Error("consumers should share one cache")
	}
	if builds != 1 || s.Refs() != 2 {
		t.Errorf("builds = %d, refs = %d, want 1 and 2", builds, s.Refs())
	}

	_ = a.Expand(top)
	if err := s.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if last.closed {
		t.Error("cache torn down while still referenced")
	}

	_ = s.Release()
	if !last.closed || s.Refs() != 0 {
		t.Error("last Release should tear the cache down")
	}
	if last.watched() != 0 {
		t.Errorf("watched = %d after teardown", last.watched())
	}

	c, _ := s.Acquire()
	if c == a || builds != 2 {
		t.Error("Acquire after teardown should build a fresh cache")
	}
	if !isLonePlaceholderAt(c, top) {
		t.Error("fresh cache should start unexpanded")
	}
	_ = s.Release()

	// Unbalanced releases are ignored.
	if err := s.Release(); err != nil || s.Refs() != 0 {
		t.Errorf("extra Release() = %v, refs = %d", err, s.Refs())
	}
}

func TestShared_BuildError(t *testing.T) {
	boom := errors.New("boom")
	s := NewShared(func() (*Cache, error) { return nil, boom })

	if _, err := s.Acquire(); !errors.Is(err, boom) {
		t.Errorf("Acquire() = %v, want %v", err, boom)
	}
	if s.Refs() != 0 {
		t.Errorf("Refs() = %d after failed Acquire", s.Refs())
	}
}
