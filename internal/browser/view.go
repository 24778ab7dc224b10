package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/wilbur182/dirtree/internal/styles"
)

const (
	iconExpanded  = "▾ "
	iconCollapsed = "▸ "
	iconLeaf      = "  "
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.closed {
		return ""
	}

	var sb strings.Builder
	header := styles.Title.Render("dirtree") + " " + styles.Muted.Render(m.cache.RootPath())
	sb.WriteString(ansi.Truncate(header, m.width, "…"))

	h := m.listHeight()
	end := min(m.scroll+h, len(m.rows))
	for i := m.scroll; i < end; i++ {
		sb.WriteString("\n")
		sb.WriteString(m.renderRow(m.rows[i], i == m.cursor))
	}
	for i := end - m.scroll; i < h; i++ {
		sb.WriteString("\n")
	}

	if m.opts.ShowFooter {
		sb.WriteString("\n")
		sb.WriteString(m.renderFooter())
	}
	return sb.String()
}

// renderRow renders one tree line, cut to the terminal width.
func (m *Model) renderRow(r row, selected bool) string {
	indent := strings.Repeat(" ", r.depth*m.opts.IndentWidth)
	icon := iconLeaf
	switch {
	case r.expanded:
		icon = iconExpanded
	case r.expandable:
		icon = iconCollapsed
	}

	if selected {
		// Truncate before styling so the highlight spans the full width.
		line := ansi.Truncate(indent+icon+r.name, m.width, "…")
		return styles.ListItemSelected.Render(runewidth.FillRight(line, m.width))
	}
	line := indent + styles.DirIcon.Render(icon) + styles.ListItemNormal.Render(r.name)
	return ansi.Truncate(line, m.width, "…")
}

func (m *Model) renderFooter() string {
	if m.status != "" {
		style := styles.ToastSuccess
		if m.statusErr {
			style = styles.ToastError
		}
		return ansi.Truncate(style.Render(m.status), m.width, "…")
	}

	stats := m.cache.Stats()
	usage := fmt.Sprintf("%d nodes · %d watched", stats.Nodes, stats.Watches)
	if m.opts.WatchStats != nil {
		dirs, _ := m.opts.WatchStats()
		usage = fmt.Sprintf("%d nodes · %d dirs watched", stats.Nodes, dirs)
	}

	hints := []string{styles.Subtle.Render(usage)}
	for _, b := range m.keys.shortHelp() {
		help := b.Help()
		hints = append(hints, styles.KeyHint.Render(help.Key)+" "+styles.Muted.Render(help.Desc))
	}
	return ansi.Truncate(strings.Join(hints, "  "), m.width, "…")
}
