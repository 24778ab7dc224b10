package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wilbur182/dirtree/internal/dirtree"
)

const (
	defaultWidth   = 80
	defaultHeight  = 24
	statusDuration = 2 * time.Second
	maxNoteBatch   = 256
	defaultIndent  = 2
	persistTimeout = time.Second
)

// StateStore persists which directories were expanded.
type StateStore interface {
	MarkExpanded(ctx context.Context, root, dir string) error
	MarkCollapsed(ctx context.Context, root, dir string) error
	Expanded(ctx context.Context, root string) ([]string, error)
}

// Options configures a Model.
type Options struct {
	// Keymap rebinds actions, e.g. {"copy": "c,Y"}.
	Keymap      map[string]string
	ShowFooter  bool
	IndentWidth int
	// State restores and records expanded directories; nil disables it.
	State StateStore
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
	// WatchStats reports the monitor's watched directories and handles for
	// the footer; nil shows the cache's own watch count.
	WatchStats func() (dirs, handles int)
	Logger     *slog.Logger
}

// Model is the bubbletea model of the tree view.
type Model struct {
	cache  *dirtree.Cache
	sub    *dirtree.Subscription
	keys   keyMap
	opts   Options
	logger *slog.Logger

	expanded map[dirtree.Ref]bool
	rows     []row
	cursor   int
	selected dirtree.Ref
	scroll   int
	width    int
	height   int

	status    string
	statusErr bool
	statusSeq int

	closed bool
}

// Messages
type (
	notificationsMsg      []dirtree.Notification
	subscriptionClosedMsg struct{}
	clearStatusMsg        struct{ seq int }
)

// New creates a view over c. The top directory is expanded right away,
// followed by any directories recorded in opts.State.
func New(c *dirtree.Cache, opts Options) *Model {
	if opts.IndentWidth <= 0 {
		opts.IndentWidth = defaultIndent
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Model{
		cache:    c,
		sub:      c.Subscribe(),
		keys:     defaultKeyMap(),
		opts:     opts,
		logger:   opts.Logger,
		expanded: make(map[dirtree.Ref]bool),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.keys.applyOverrides(opts.Keymap)
	m.restore()
	m.refresh()
	return m
}

// restore expands the top directory and every recorded directory that
// still exists, parents first.
func (m *Model) restore() {
	top := m.cache.Root().Child(0)
	m.expandAt(top)

	if m.opts.State == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	paths, err := m.opts.State.Expanded(ctx, m.cache.RootPath())
	if err != nil {
		m.logger.Warn("browser: load expanded directories", "err", err)
		return
	}
	for _, p := range paths {
		pos, ok := resolvePath(m.cache, p)
		if !ok {
			m.logger.Debug("browser: skip vanished directory", "path", p)
			continue
		}
		m.expandAt(pos)
	}
}

// expandAt takes one expansion reference on pos for this view.
func (m *Model) expandAt(pos dirtree.Position) (dirtree.Ref, bool) {
	ref, ok := m.cache.RefAt(pos)
	if !ok || m.expanded[ref] {
		return ref, false
	}
	if err := m.cache.Expand(pos); err != nil {
		m.logger.Debug("browser: expand failed", "pos", pos, "err", err)
		return ref, false
	}
	m.expanded[ref] = true
	return ref, true
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForNotifications(m.sub)
}

// waitForNotifications blocks for one notification, then takes whatever else
// is already queued so a burst costs one redraw.
func waitForNotifications(sub *dirtree.Subscription) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-sub.C
		if !ok {
			return subscriptionClosedMsg{}
		}
		batch := notificationsMsg{n}
		for len(batch) < maxNoteBatch {
			select {
			case n, ok := <-sub.C:
				if !ok {
					return batch
				}
				batch = append(batch, n)
			default:
				return batch
			}
		}
		return batch
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ensureCursorVisible()
		return m, nil

	case notificationsMsg:
		m.refresh()
		return m, waitForNotifications(m.sub)

	case subscriptionClosedMsg:
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(-len(m.rows))
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(m.rows))
	case key.Matches(msg, m.keys.Expand):
		m.expandSelected()
	case key.Matches(msg, m.keys.Collapse):
		m.collapseSelected()
	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()
	}
	return m, nil
}

func (m *Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = max(0, min(len(m.rows)-1, m.cursor+delta))
	m.selected = m.rows[m.cursor].ref
	m.ensureCursorVisible()
}

// expandSelected expands the selected directory, or steps into it when it is
// already open.
func (m *Model) expandSelected() {
	r, ok := m.current()
	if !ok || !r.expandable {
		return
	}
	if r.expanded {
		if m.cursor+1 < len(m.rows) && m.rows[m.cursor+1].depth > r.depth {
			m.moveCursor(1)
		}
		return
	}

	pos, ok := m.cache.PositionOf(r.ref)
	if !ok {
		return
	}
	if _, ok := m.expandAt(pos); ok {
		m.persist(func(ctx context.Context, s StateStore) error {
			return s.MarkExpanded(ctx, m.cache.RootPath(), r.path)
		})
	}
	m.refresh()
}

// collapseSelected collapses the selected directory with everything this
// view opened below it, or moves to the parent when it is not open.
func (m *Model) collapseSelected() {
	r, ok := m.current()
	if !ok {
		return
	}
	if !r.expanded {
		for i := m.cursor - 1; i >= 0; i-- {
			if m.rows[i].depth < r.depth {
				m.moveCursor(i - m.cursor)
				break
			}
		}
		return
	}

	m.collapseBelow(r.ref)
	m.persist(func(ctx context.Context, s StateStore) error {
		return s.MarkCollapsed(ctx, m.cache.RootPath(), r.path)
	})
	m.refresh()
}

// collapseBelow drops this view's expansions at and below ref, deepest
// first.
func (m *Model) collapseBelow(ref dirtree.Ref) {
	pos, ok := m.cache.PositionOf(ref)
	if !ok {
		delete(m.expanded, ref)
		return
	}
	for _, r := range m.expandedWithin(pos) {
		if p, ok := m.cache.PositionOf(r); ok {
			_ = m.cache.Collapse(p)
		}
		delete(m.expanded, r)
	}
}

func (m *Model) persist(op func(context.Context, StateStore) error) {
	if m.opts.State == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := op(ctx, m.opts.State); err != nil {
		m.logger.Warn("browser: save expanded directories", "err", err)
	}
}

func (m *Model) copySelected() tea.Cmd {
	r, ok := m.current()
	if !ok || r.path == "" {
		return m.setStatus("Nothing to copy", true)
	}
	if err := m.opts.Clipboard(r.path); err != nil {
		m.logger.Debug("browser: clipboard write failed", "err", err)
		return m.setStatus("Failed to copy path", true)
	}
	return m.setStatus("Copied: "+r.path, false)
}

// setStatus shows a footer message and schedules its removal.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	seq := m.statusSeq
	m.status = text
	m.statusErr = isErr
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// refresh rebuilds the rows and keeps the cursor on the selected node when
// it still exists.
func (m *Model) refresh() {
	m.pruneExpanded()
	m.rows = m.buildRows()

	found := false
	if !m.selected.IsZero() {
		for i, r := range m.rows {
			if r.ref == m.selected {
				m.cursor = i
				found = true
				break
			}
		}
	}
	if !found {
		m.cursor = max(0, min(m.cursor, len(m.rows)-1))
	}
	if len(m.rows) > 0 {
		m.selected = m.rows[m.cursor].ref
	}
	m.ensureCursorVisible()
}

func (m *Model) listHeight() int {
	h := m.height - 1 // header
	if m.opts.ShowFooter {
		h--
	}
	return max(1, h)
}

func (m *Model) ensureCursorVisible() {
	h := m.listHeight()
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+h {
		m.scroll = m.cursor - h + 1
	}
	m.scroll = max(0, min(m.scroll, len(m.rows)-h))
}

// Close releases every expansion this view holds and stops listening for
// notifications. Recorded state is left as is so the next session reopens
// the same directories.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	root, _ := m.cache.RefAt(m.cache.Root())
	m.collapseBelow(root)
	clear(m.expanded)
	m.sub.Close()
}
