package dirtree

// Ref is a persistent handle to a node. Unlike a Position it keeps pointing
// at the same node while siblings come and go, and becomes invalid only when
// that node is removed. A Ref belongs to the Cache that issued it.
type Ref struct {
	stamp  uint64
	id     nodeID
	serial uint32
}

// IsZero reports whether r was never issued.
func (r Ref) IsZero() bool { return r.stamp == 0 }

// RefAt returns a persistent handle for the node at pos.
func (c *Cache) RefAt(pos Position) (Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, n, ok := c.lookup(pos)
	if !ok {
		return Ref{}, false
	}
	return Ref{stamp: c.stamp, id: id, serial: n.serial}, true
}

// PositionOf returns the current Position of the node r refers to.
func (c *Cache) PositionOf(r Ref) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.resolve(r)
	if !ok {
		return nil, false
	}
	return c.positionOf(id)
}

// Valid reports whether r still refers to a node of this cache.
func (c *Cache) Valid(r Ref) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.resolve(r)
	return ok
}

func (c *Cache) resolve(r Ref) (nodeID, bool) {
	if c.closed || r.stamp != c.stamp {
		return nilNode, false
	}
	n := c.nodes.get(r.id)
	if n == nil || n.serial != r.serial {
		return nilNode, false
	}
	if r.id != c.root && !c.attached(r.id) {
		return nilNode, false
	}
	return r.id, true
}
