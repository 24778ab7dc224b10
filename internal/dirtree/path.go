package dirtree

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Position addresses a node by the sibling index taken at each level below
// the synthetic root. The zero-length Position is the root itself; [0] is
// the top directory.
type Position []int

// String renders p as colon-separated indices, e.g. "0:3:1".
func (p Position) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ":")
}

// Equal reports whether p and q address the same slot.
func (p Position) Equal(q Position) bool {
	return slices.Equal(p, q)
}

// Child returns a new Position for the index-th child of p.
func (p Position) Child(index int) Position {
	out := make(Position, len(p)+1)
	copy(out, p)
	out[len(p)] = index
	return out
}

// Parent returns the Position of p's parent; false for the root.
func (p Position) Parent() (Position, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return slices.Clone(p[:len(p)-1]), true
}

// nodeAt walks from the root taking the nth child at each level.
func (c *Cache) nodeAt(pos Position) (nodeID, bool) {
	id := c.root
	for _, idx := range pos {
		n := c.nodes.get(id)
		if idx < 0 || idx >= n.nChildren {
			return nilNode, false
		}
		ch := n.first
		for i := 0; i < idx; i++ {
			ch = c.nodes.get(ch).next
		}
		id = ch
	}
	return id, true
}

// positionOf computes id's Position by counting preceding siblings at every
// level. Nodes not attached to the root have none.
func (c *Cache) positionOf(id nodeID) (Position, bool) {
	var rev []int
	for id != c.root {
		n := c.nodes.get(id)
		if n == nil || !n.linked {
			return nil, false
		}
		rank := 0
		for sib := n.prev; sib != nilNode; sib = c.nodes.get(sib).prev {
			rank++
		}
		rev = append(rev, rank)
		id = n.parent
	}
	slices.Reverse(rev)
	return Position(rev), true
}

// attached reports whether id is reachable from the root.
func (c *Cache) attached(id nodeID) bool {
	for id != c.root {
		n := c.nodes.get(id)
		if n == nil || !n.linked {
			return false
		}
		id = n.parent
	}
	return true
}

// nodePath joins base names from the top directory down to id. It fails for
// the root and whenever a node on the way has no metadata.
func (c *Cache) nodePath(id nodeID) (string, bool) {
	var rev []string
	for id != c.root {
		n := c.nodes.get(id)
		if n == nil || n.meta == nil {
			return "", false
		}
		rev = append(rev, n.name)
		id = n.parent
	}
	if len(rev) == 0 {
		return "", false
	}
	slices.Reverse(rev)
	// The top segment is the root path itself, so Join adds no separator
	// after "/".
	return filepath.Join(rev...), true
}
