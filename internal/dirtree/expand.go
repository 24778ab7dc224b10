package dirtree

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// expand adds one expansion reference to id. Only the first expansion of a
// node does any work: an unpopulated node reads its directory, a populated
// one (kept by the retention policy) is reconciled with the directory. Both
// then start watching it.
func (c *Cache) expand(id nodeID) {
	n := c.nodes.get(id)
	n.expandCount++
	if n.expandCount > 1 || id == c.root {
		return
	}

	if n.nChildren > 0 && c.lonePlaceholder(id) == nilNode {
		c.reconcile(id)
		c.startWatch(id)
		return
	}
	if n.meta == nil {
		return
	}

	dir, ok := c.nodePath(id)
	if !ok {
		return
	}
	entries, err := c.readDir(dir)
	if err != nil {
		c.logger.Debug("dirtree: read directory failed", "dir", dir, "err", err)
		return
	}

	for _, e := range entries {
		if !c.wantEntry(dir, e) {
			continue
		}
		c.insertSorted(id, c.createNode(id, dir, e.Name()))
	}
	c.startWatch(id)
	c.dropPlaceholder(id)
}

// reconcile brings retained children up to date with the directory: entries
// that vanished or stopped being directories are removed and new ones added.
// Known names that are still plain directories are not stat'ed again.
func (c *Cache) reconcile(id nodeID) {
	dir, ok := c.nodePath(id)
	if !ok {
		return
	}
	entries, err := c.readDir(dir)
	if err != nil {
		c.logger.Debug("dirtree: reconcile failed", "dir", dir, "err", err)
		return
	}

	onDisk := make(map[string]fs.DirEntry, len(entries))
	for _, e := range entries {
		onDisk[e.Name()] = e
	}

	n := c.nodes.get(id)
	known := make(map[string]bool, n.nChildren)
	for ch := n.first; ch != nilNode; {
		chn := c.nodes.get(ch)
		next := chn.next
		if !chn.isPlaceholder() {
			if e, ok := onDisk[chn.name]; ok && c.wantEntry(dir, e) {
				known[chn.name] = true
			} else {
				c.removeNode(id, ch)
			}
		}
		ch = next
	}

	for _, e := range entries {
		if known[e.Name()] || !c.wantEntry(dir, e) {
			continue
		}
		c.insertSorted(id, c.createNode(id, dir, e.Name()))
	}
	c.dropPlaceholder(id)
}

// collapse drops one expansion reference. When the last one goes the watch
// stops and, unless the directory is big enough to be retained, every child
// is removed; the final removal leaves a placeholder behind.
func (c *Cache) collapse(id nodeID) {
	n := c.nodes.get(id)
	if n.expandCount == 0 {
		return
	}
	n.expandCount--
	if n.expandCount > 0 {
		return
	}

	c.stopWatch(id)
	if id == c.root || c.lonePlaceholder(id) != nilNode {
		return
	}
	if n.nChildren > c.retain {
		c.logger.Debug("dirtree: retaining collapsed directory", "children", n.nChildren)
		return
	}

	for n.nChildren > 0 && c.lonePlaceholder(id) == nilNode {
		c.removeNode(id, n.first)
	}
}

// wantEntry reports whether a directory entry becomes a node: directories
// and symlinks to directories, minus dotfiles when those are hidden.
func (c *Cache) wantEntry(dir string, e fs.DirEntry) bool {
	name := e.Name()
	if c.hideDots && strings.HasPrefix(name, ".") {
		return false
	}
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := c.stat(filepath.Join(dir, name))
	return err == nil && info.IsDir()
}

// dropPlaceholder removes id's placeholder once real children exist.
func (c *Cache) dropPlaceholder(id nodeID) {
	n := c.nodes.get(id)
	if n.nChildren < 2 {
		return
	}
	for ch := n.first; ch != nilNode; ch = c.nodes.get(ch).next {
		if c.nodes.get(ch).isPlaceholder() {
			c.removeNode(id, ch)
			return
		}
	}
}

func (c *Cache) startWatch(id nodeID) {
	n := c.nodes.get(id)
	if c.mon == nil || n.watch != 0 {
		return
	}
	dir, ok := c.nodePath(id)
	if !ok {
		return
	}
	h, err := c.mon.Watch(dir)
	if err != nil {
		c.logger.Debug("dirtree: watch failed, continuing without live updates", "dir", dir, "err", err)
		return
	}
	n.watch = h
	c.watches[h] = watchRef{id: id, serial: n.serial}
}

func (c *Cache) stopWatch(id nodeID) {
	n := c.nodes.get(id)
	if n == nil || n.watch == 0 {
		return
	}
	delete(c.watches, n.watch)
	c.mon.Unwatch(n.watch)
	n.watch = 0
}
