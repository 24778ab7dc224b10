package dirtree

import (
	"slices"

	"github.com/wilbur182/dirtree/internal/metadata"
)

// insertSorted links child into parent ahead of the first sibling whose
// case-folded name is not less than child's, so equal names land before the
// existing entry. Placeholders never serve as an insertion point and are
// themselves appended.
func (c *Cache) insertSorted(parent, child nodeID) {
	p := c.nodes.get(parent)
	n := c.nodes.get(child)

	before := nilNode
	if !n.isPlaceholder() {
		key := c.keyOf(n)
		for sib := p.first; sib != nilNode; sib = c.nodes.get(sib).next {
			s := c.nodes.get(sib)
			if s.isPlaceholder() {
				continue
			}
			if c.keyOf(s) >= key {
				before = sib
				break
			}
		}
	}
	c.link(parent, child, before)

	if pos, ok := c.positionOf(child); ok {
		c.emit(Inserted, pos)
		c.emit(HasChildrenChanged, pos[:len(pos)-1])
	}
}

func (c *Cache) keyOf(n *node) string {
	if n.meta != nil {
		return n.meta.SortKey()
	}
	return metadata.FoldName(n.name)
}

// removeNode unlinks and destroys child. A parent that has metadata and is
// left without children gets a placeholder back so it still looks
// expandable.
func (c *Cache) removeNode(parent, child nodeID) {
	if pos, ok := c.positionOf(child); ok {
		c.emit(Deleted, pos)
	}
	c.unlink(parent, child)
	c.destroyNode(child)

	p := c.nodes.get(parent)
	if p != nil && p.nChildren == 0 && p.meta != nil {
		ph, _ := c.nodes.alloc()
		c.insertSorted(parent, ph)
	}
}

func (c *Cache) emit(kind Kind, pos Position) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, s := range c.subs {
		s.push(Notification{Kind: kind, Position: slices.Clone(pos)})
	}
}
