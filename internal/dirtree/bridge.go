package dirtree

import (
	"path/filepath"
	"strings"

	"github.com/wilbur182/dirtree/internal/monitor"
)

// handleEvent applies one monitor event. Events for handles that have been
// unwatched since they were queued are dropped.
func (c *Cache) handleEvent(ev monitor.Event) {
	ref, ok := c.watches[ev.Handle]
	if !ok {
		c.logger.Debug("dirtree: event for unwatched handle", "handle", ev.Handle, "op", ev.Op, "name", ev.Name)
		return
	}
	n := c.nodes.get(ref.id)
	if n == nil || n.serial != ref.serial || n.watch != ev.Handle {
		return
	}

	switch ev.Op {
	case monitor.Created:
		c.entryCreated(ref.id, ev.Name)
	case monitor.Deleted:
		c.entryDeleted(ref.id, ev.Name)
	case monitor.Changed:
		c.entryChanged(ref.id, ev.Name)
	}
}

func (c *Cache) entryCreated(id nodeID, name string) {
	if c.findChild(id, name) != nilNode {
		return
	}
	if c.hideDots && strings.HasPrefix(name, ".") {
		return
	}
	dir, ok := c.nodePath(id)
	if !ok {
		return
	}
	info, err := c.stat(filepath.Join(dir, name))
	if err != nil || !info.IsDir() {
		return
	}

	c.insertSorted(id, c.createNode(id, dir, name))
	c.dropPlaceholder(id)
}

func (c *Cache) entryDeleted(id nodeID, name string) {
	if ch := c.findChild(id, name); ch != nilNode {
		c.removeNode(id, ch)
	}
}

// entryChanged refreshes a child's metadata in place. The name is unchanged,
// so sibling order holds. A child whose metadata could not be loaded before
// becomes expandable once it loads.
func (c *Cache) entryChanged(id nodeID, name string) {
	ch := c.findChild(id, name)
	if ch == nilNode {
		return
	}
	dir, ok := c.nodePath(id)
	if !ok {
		return
	}
	rec, err := c.meta.Load(dir, name)
	if err != nil {
		return
	}

	chn := c.nodes.get(ch)
	old := chn.meta
	if old != nil && old.Fingerprint() == rec.Fingerprint() {
		rec.Release()
		return
	}
	chn.meta = rec
	if old != nil {
		old.Release()
	}

	if pos, ok := c.positionOf(ch); ok {
		c.emit(Changed, pos)
	}
	if old == nil && chn.nChildren == 0 {
		ph, _ := c.nodes.alloc()
		c.insertSorted(ch, ph)
	}
}
