package dirtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wilbur182/dirtree/internal/monitor"
)

// walk visits every Position reachable from pos, pos included.
func walk(c *Cache, pos Position, visit func(Position)) {
	visit(pos)
	for i := 0; i < c.NumChildren(pos); i++ {
		walk(c, pos.Child(i), visit)
	}
}

func TestRef_RoundTrip(t *testing.T) {
	env := newTestEnv(t, "a/x", "a/y", "b", "C")
	c := env.cache
	_ = c.Expand(top)
	_ = c.Expand(Position{0, 0})

	count := 0
	walk(c, c.Root(), func(pos Position) {
		count++
		r, ok := c.RefAt(pos)
		if !ok {
			t.Fatalf("RefAt(%v) failed", pos)
		}
		if r.IsZero() {
			t.Errorf("RefAt(%v) returned a zero Ref", pos)
		}
		got, ok := c.PositionOf(r)
		if !ok || !got.Equal(pos) {
			t.Errorf("PositionOf(RefAt(%v)) = (%v, %v)", pos, got, ok)
		}
	})
	// root, top, a, x, y, b, C and the placeholders of x, y, b, C
	if count != 11 {
		t.Errorf("visited %d nodes, want 11", count)
	}
}

func TestRef_FollowsSiblingChanges(t *testing.T) {
	env := newTestEnv(t, "m", "z")
	c := env.cache
	_ = c.Expand(top)
	h := env.watcher.handleFor(t, env.root)

	r, _ := c.RefAt(Position{0, 1})

	mkdirs(t, env.root, "a")
	env.apply(h, monitor.Created, "a")
	if got, ok := c.PositionOf(r); !ok || !got.Equal(Position{0, 2}) {
		t.Errorf("PositionOf(z) = (%v, %v), want 0:2", got, ok)
	}

	if err := os.Remove(filepath.Join(env.root, "m")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	env.apply(h, monitor.Deleted, "m")
	if got, ok := c.PositionOf(r); !ok || !got.Equal(Position{0, 1}) {
		t.Errorf("PositionOf(z) = (%v, %v), want 0:1", got, ok)
	}
}

func TestRef_InvalidAfterRemoval(t *testing.T) {
	env := newTestEnv(t, "a", "a/b")
	c := env.cache
	_ = c.Expand(top)
	_ = c.Expand(Position{0, 0})

	ra, _ := c.RefAt(Position{0, 0})
	rb, _ := c.RefAt(Position{0, 0, 0})
	_ = c.Collapse(top)

	if c.Valid(ra) || c.Valid(rb) {
		t.Error("refs into an evicted subtree must be invalid")
	}
	if _, ok := c.PositionOf(rb); ok {
		t.Error("PositionOf(evicted) should fail")
	}

	// The freed slots get reused; old refs still do not match.
	_ = c.Expand(top)
	if c.Valid(ra) {
		t.Error("ref matched a reused slot")
	}
	if pos, ok := c.Lookup(top, "a"); !ok || !pos.Equal(Position{0, 0}) {
		t.Errorf("Lookup(a) = (%v, %v)", pos, ok)
	}
}

func TestRef_BelongsToItsCache(t *testing.T) {
	one := newTestEnv(t, "a")
	two := newTestEnv(t, "a")

	r, ok := one.cache.RefAt(top)
	if !ok {
		t.Fatal("RefAt(top) failed")
	}
	if two.cache.Valid(r) {
		t.Error("a Ref from another cache must be invalid")
	}
	if !(Ref{}).IsZero() || two.cache.Valid(Ref{}) {
		t.Error("the zero Ref must be invalid")
	}

	_ = one.cache.Close()
	if one.cache.Valid(r) {
		t.Error("refs must be invalid after Close")
	}
}
