package dirtree

import (
	"github.com/wilbur182/dirtree/internal/metadata"
	"github.com/wilbur182/dirtree/internal/monitor"
)

// nodeID indexes the node arena. Slots are reused after a node is freed;
// serial tells incarnations of one slot apart.
type nodeID int32

const nilNode nodeID = -1

type node struct {
	name string // base name; the configured root path for the top node; "" for placeholders
	meta *metadata.Record

	parent nodeID
	first  nodeID
	last   nodeID
	prev   nodeID
	next   nodeID
	linked bool // present in parent's child list

	nChildren   int
	expandCount int
	watch       monitor.Handle

	serial uint32
	live   bool
}

// isPlaceholder reports whether n only stands for "not yet read".
func (n *node) isPlaceholder() bool {
	return n.meta == nil && n.name == ""
}

type arena struct {
	nodes []*node
	free  []nodeID
	count int
}

func (a *arena) alloc() (nodeID, *node) {
	var id nodeID
	if k := len(a.free); k > 0 {
		id = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		id = nodeID(len(a.nodes))
		a.nodes = append(a.nodes, &node{})
	}
	n := a.nodes[id]
	serial := n.serial
	*n = node{
		parent: nilNode,
		first:  nilNode,
		last:   nilNode,
		prev:   nilNode,
		next:   nilNode,
		serial: serial,
		live:   true,
	}
	a.count++
	return id, n
}

// get returns the live node for id, or nil.
func (a *arena) get(id nodeID) *node {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	if n := a.nodes[id]; n.live {
		return n
	}
	return nil
}

func (a *arena) release(id nodeID) {
	n := a.get(id)
	if n == nil {
		return
	}
	n.live = false
	n.meta = nil
	n.serial++
	a.free = append(a.free, id)
	a.count--
}

// createNode allocates a node under parent without linking it. A named node
// gets its metadata loaded and a placeholder child; an unnamed node is a
// placeholder. When metadata cannot be loaded the node keeps its name but
// stays childless, which views show as having no subfolders.
func (c *Cache) createNode(parent nodeID, dir, name string) nodeID {
	id, n := c.nodes.alloc()
	n.parent = parent
	n.name = name
	if name == "" {
		return id
	}

	meta, err := c.meta.Load(dir, name)
	if err != nil {
		c.logger.Debug("dirtree: metadata load failed", "dir", dir, "name", name, "err", err)
		return id
	}
	n.meta = meta

	ph, phn := c.nodes.alloc()
	phn.parent = id
	c.link(id, ph, nilNode)
	return id
}

// destroyNode frees id and its whole subtree, releasing metadata and
// watches. Freed ids are ignored.
func (c *Cache) destroyNode(id nodeID) {
	n := c.nodes.get(id)
	if n == nil {
		return
	}

	for ch := n.first; ch != nilNode; {
		chn := c.nodes.get(ch)
		if chn == nil {
			break
		}
		next := chn.next
		c.destroyNode(ch)
		ch = next
	}
	n.first, n.last, n.nChildren = nilNode, nilNode, 0

	c.stopWatch(id)
	if n.meta != nil {
		n.meta.Release()
	}
	c.nodes.release(id)
}

// link inserts child into parent's list before sibling, or appends it when
// before is nilNode.
func (c *Cache) link(parent, child, before nodeID) {
	p := c.nodes.get(parent)
	n := c.nodes.get(child)

	n.parent = parent
	n.linked = true
	if before == nilNode {
		n.prev = p.last
		n.next = nilNode
		if p.last != nilNode {
			c.nodes.get(p.last).next = child
		} else {
			p.first = child
		}
		p.last = child
	} else {
		b := c.nodes.get(before)
		n.prev = b.prev
		n.next = before
		if b.prev != nilNode {
			c.nodes.get(b.prev).next = child
		} else {
			p.first = child
		}
		b.prev = child
	}
	p.nChildren++
}

// unlink detaches child from parent's list without freeing it.
func (c *Cache) unlink(parent, child nodeID) {
	p := c.nodes.get(parent)
	n := c.nodes.get(child)

	if n.prev != nilNode {
		c.nodes.get(n.prev).next = n.next
	} else {
		p.first = n.next
	}
	if n.next != nilNode {
		c.nodes.get(n.next).prev = n.prev
	} else {
		p.last = n.prev
	}
	n.prev, n.next = nilNode, nilNode
	n.linked = false
	p.nChildren--
}

// findChild returns the child of parent whose on-disk name is name.
func (c *Cache) findChild(parent nodeID, name string) nodeID {
	p := c.nodes.get(parent)
	if p == nil {
		return nilNode
	}
	for ch := p.first; ch != nilNode; ch = c.nodes.get(ch).next {
		if n := c.nodes.get(ch); !n.isPlaceholder() && n.name == name {
			return ch
		}
	}
	return nilNode
}

// lonePlaceholder returns the placeholder child of id when it is the only
// child, or nilNode.
func (c *Cache) lonePlaceholder(id nodeID) nodeID {
	n := c.nodes.get(id)
	if n == nil || n.nChildren != 1 {
		return nilNode
	}
	if c.nodes.get(n.first).isPlaceholder() {
		return n.first
	}
	return nilNode
}
