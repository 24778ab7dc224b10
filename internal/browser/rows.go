package browser

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/wilbur182/dirtree/internal/dirtree"
)

// row is one visible line of the tree.
type row struct {
	ref        dirtree.Ref
	depth      int
	name       string
	path       string
	expanded   bool // expanded by this view
	expandable bool
}

// buildRows flattens the part of the tree this view has expanded. Rows are
// rebuilt from positions on every change; refs carry identity across
// rebuilds.
func (m *Model) buildRows() []row {
	var rows []row
	var visit func(pos dirtree.Position, depth int)
	visit = func(pos dirtree.Position, depth int) {
		info, ok := m.cache.Info(pos)
		if !ok || info.Placeholder {
			return
		}
		ref, ok := m.cache.RefAt(pos)
		if !ok {
			return
		}
		r := row{
			ref:        ref,
			depth:      depth,
			name:       info.DisplayName,
			path:       info.Path,
			expanded:   m.expanded[ref],
			expandable: m.cache.HasChildren(pos),
		}
		rows = append(rows, r)
		if !r.expanded {
			return
		}
		for i := 0; i < info.NumChildren; i++ {
			visit(pos.Child(i), depth+1)
		}
	}
	visit(m.cache.Root().Child(0), 0)
	return rows
}

// pruneExpanded forgets refs whose nodes the cache has removed; their
// expansion went with them.
func (m *Model) pruneExpanded() {
	for ref := range m.expanded {
		if !m.cache.Valid(ref) {
			delete(m.expanded, ref)
		}
	}
}

// expandedWithin returns the refs of this view's expanded nodes at or
// below pos, deepest first.
func (m *Model) expandedWithin(pos dirtree.Position) []dirtree.Ref {
	type entry struct {
		ref dirtree.Ref
		pos dirtree.Position
	}
	var found []entry
	for ref := range m.expanded {
		p, ok := m.cache.PositionOf(ref)
		if !ok || len(p) < len(pos) || !p[:len(pos)].Equal(pos) {
			continue
		}
		found = append(found, entry{ref, p})
	}
	slices.SortFunc(found, func(a, b entry) int { return len(b.pos) - len(a.pos) })

	refs := make([]dirtree.Ref, len(found))
	for i, e := range found {
		refs[i] = e.ref
	}
	return refs
}

// resolvePath finds the Position of dir below the cache's root path by
// looking up one name per level. Every ancestor must already be expanded.
func resolvePath(c *dirtree.Cache, dir string) (dirtree.Position, bool) {
	top := c.Root().Child(0)
	rel, err := filepath.Rel(c.RootPath(), dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}
	if rel == "." {
		return top, true
	}

	pos := top
	for _, name := range strings.Split(rel, string(filepath.Separator)) {
		var ok bool
		if pos, ok = c.Lookup(pos, name); !ok {
			return nil, false
		}
	}
	return pos, true
}
