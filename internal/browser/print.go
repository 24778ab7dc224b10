package browser

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/wilbur182/dirtree/internal/dirtree"
	"github.com/wilbur182/dirtree/internal/styles"
)

// Print writes the top directory and its subdirectories down to depth levels
// to w as a tree. Every expansion it takes is released before it returns.
func Print(w io.Writer, c *dirtree.Cache, depth int) error {
	var taken []dirtree.Ref
	defer func() {
		for i := len(taken) - 1; i >= 0; i-- {
			if pos, ok := c.PositionOf(taken[i]); ok {
				_ = c.Collapse(pos)
			}
		}
	}()

	// visit returns the node for ref: a subtree when it has visible
	// children, its name otherwise, or nil when ref is gone or a placeholder.
	var visit func(ref dirtree.Ref, level int) (any, error)
	visit = func(ref dirtree.Ref, level int) (any, error) {
		pos, ok := c.PositionOf(ref)
		if !ok {
			return nil, nil
		}
		info, ok := c.Info(pos)
		if !ok || info.Placeholder {
			return nil, nil
		}
		if level >= depth || !info.HasMetadata {
			return info.DisplayName, nil
		}

		if err := c.Expand(pos); err != nil {
			return nil, err
		}
		taken = append(taken, ref)

		var children []dirtree.Ref
		for i := 0; i < c.NumChildren(pos); i++ {
			if child, ok := c.RefAt(pos.Child(i)); ok {
				children = append(children, child)
			}
		}
		var nodes []any
		for _, child := range children {
			node, err := visit(child, level+1)
			if err != nil {
				return nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
		}
		if len(nodes) == 0 {
			return info.DisplayName, nil
		}
		return tree.Root(info.DisplayName).Child(nodes...), nil
	}

	top, ok := c.RefAt(c.Root().Child(0))
	if !ok {
		return dirtree.ErrNotFound
	}
	node, err := visit(top, 0)
	if err != nil {
		return err
	}

	t, ok := node.(*tree.Tree)
	if !ok {
		t = tree.Root(node)
	}
	t.RootStyle(styles.Title).
		ItemStyle(styles.ListItemNormal).
		EnumeratorStyle(styles.Subtle.PaddingRight(1))
	_, err = fmt.Fprintln(w, t.String())
	return err
}
