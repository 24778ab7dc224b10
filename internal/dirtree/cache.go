package dirtree

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wilbur182/dirtree/internal/metadata"
	"github.com/wilbur182/dirtree/internal/monitor"
)

// DefaultRetentionThreshold is the child count above which a fully collapsed
// directory keeps its children cached.
const DefaultRetentionThreshold = 128

// MetadataProvider loads retained metadata records.
type MetadataProvider interface {
	Load(dir, name string) (*metadata.Record, error)
}

// Watcher is the change-notification facility. Events for a handle may still
// arrive after Unwatch.
type Watcher interface {
	Watch(dir string) (monitor.Handle, error)
	Unwatch(h monitor.Handle)
	Events() <-chan monitor.Event
}

// Options configures a Cache.
type Options struct {
	// Root is the directory shown as the single top node. Default "/".
	Root string
	// RetentionThreshold defaults to DefaultRetentionThreshold.
	RetentionThreshold int
	// HideDotfiles skips entries whose name starts with a dot.
	HideDotfiles bool
	// Metadata defaults to a fresh metadata.Provider.
	Metadata MetadataProvider
	// Monitor supplies live updates; nil disables them. The cache owns it and
	// closes it on Close when it implements io.Closer.
	Monitor Watcher
	// ReadDir defaults to os.ReadDir.
	ReadDir func(dir string) ([]fs.DirEntry, error)
	Logger  *slog.Logger
}

// stamps hands every Cache a distinct generation tag.
var stamps atomic.Uint64

type watchRef struct {
	id     nodeID
	serial uint32
}

// Cache is the shared directory tree. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	nodes    arena
	root     nodeID
	stamp    uint64
	closed   bool
	watches  map[monitor.Handle]watchRef
	rootPath string

	meta     MetadataProvider
	mon      Watcher
	readDir  func(string) ([]fs.DirEntry, error)
	stat     func(string) (fs.FileInfo, error)
	retain   int
	hideDots bool
	logger   *slog.Logger

	subMu sync.Mutex
	subs  []*Subscription

	stopDrain chan struct{}
	drained   chan struct{}
}

// New builds a cache holding the synthetic root and the top directory, and
// starts draining monitor events when a Monitor is configured.
func New(opts Options) *Cache {
	rootPath := opts.Root
	if rootPath == "" {
		rootPath = string(filepath.Separator)
	}
	if abs, err := filepath.Abs(rootPath); err == nil {
		rootPath = abs
	}
	if opts.RetentionThreshold <= 0 {
		opts.RetentionThreshold = DefaultRetentionThreshold
	}
	if opts.Metadata == nil {
		opts.Metadata = metadata.NewProvider()
	}
	if opts.ReadDir == nil {
		opts.ReadDir = os.ReadDir
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Cache{
		stamp:     stamps.Add(1),
		watches:   make(map[monitor.Handle]watchRef),
		rootPath:  rootPath,
		meta:      opts.Metadata,
		mon:       opts.Monitor,
		readDir:   opts.ReadDir,
		stat:      os.Stat,
		retain:    opts.RetentionThreshold,
		hideDots:  opts.HideDotfiles,
		logger:    opts.Logger,
		stopDrain: make(chan struct{}),
		drained:   make(chan struct{}),
	}

	c.root, _ = c.nodes.alloc()
	top := c.createNode(c.root, "", rootPath)
	c.insertSorted(c.root, top)

	if c.mon != nil {
		go c.drain(c.mon.Events())
	} else {
		close(c.drained)
	}
	return c
}

// drain applies monitor events one at a time under the tree lock.
func (c *Cache) drain(events <-chan monitor.Event) {
	defer close(c.drained)

	for {
		select {
		case <-c.stopDrain:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.mu.Lock()
			if !c.closed {
				c.handleEvent(ev)
			}
			c.mu.Unlock()
		}
	}
}

// lookup resolves pos under c.mu.
func (c *Cache) lookup(pos Position) (nodeID, *node, bool) {
	if c.closed {
		return nilNode, nil, false
	}
	id, ok := c.nodeAt(pos)
	if !ok {
		return nilNode, nil, false
	}
	return id, c.nodes.get(id), true
}

// Root returns the Position of the synthetic root.
func (c *Cache) Root() Position {
	return Position{}
}

// RootPath returns the directory shown as the top node.
func (c *Cache) RootPath() string {
	return c.rootPath
}

// NumChildren returns the number of children at pos, placeholders included.
func (c *Cache) NumChildren(pos Position) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, n, ok := c.lookup(pos)
	if !ok {
		return 0
	}
	return n.nChildren
}

// HasChildren reports whether the node at pos shows an expand affordance.
func (c *Cache) HasChildren(pos Position) bool {
	return c.NumChildren(pos) > 0
}

// ChildAt returns the Position of the index-th child of pos.
func (c *Cache) ChildAt(pos Position, index int) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, n, ok := c.lookup(pos)
	if !ok || index < 0 || index >= n.nChildren {
		return nil, false
	}
	return pos.Child(index), true
}

// Parent returns the Position of pos's parent; false for the root or an
// unknown position.
func (c *Cache) Parent(pos Position) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, ok := c.lookup(pos); !ok {
		return nil, false
	}
	return pos.Parent()
}

// Path returns the absolute filesystem path of the node at pos. The root,
// placeholders and nodes without metadata have none.
func (c *Cache) Path(pos Position) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, _, ok := c.lookup(pos)
	if !ok {
		return "", false
	}
	return c.nodePath(id)
}

// Lookup returns the Position of the child of pos named name.
func (c *Cache) Lookup(pos Position, name string) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, _, ok := c.lookup(pos)
	if !ok {
		return nil, false
	}
	ch := c.findChild(id, name)
	if ch == nilNode {
		return nil, false
	}
	return c.positionOf(ch)
}

// Info is a snapshot of one node.
type Info struct {
	Name        string
	DisplayName string
	Path        string
	IsRoot      bool
	Placeholder bool
	HasMetadata bool
	ExpandCount int
	Watched     bool
	NumChildren int
}

// Expanded reports whether at least one consumer has the node expanded.
func (i Info) Expanded() bool { return i.ExpandCount > 0 }

// Info returns a snapshot of the node at pos.
func (c *Cache) Info(pos Position) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, n, ok := c.lookup(pos)
	if !ok {
		return Info{}, false
	}
	info := Info{
		Name:        n.name,
		DisplayName: n.name,
		IsRoot:      id == c.root,
		Placeholder: id != c.root && n.isPlaceholder(),
		HasMetadata: n.meta != nil,
		ExpandCount: n.expandCount,
		Watched:     n.watch != 0,
		NumChildren: n.nChildren,
	}
	if n.meta != nil {
		info.DisplayName = n.meta.DisplayName()
	}
	info.Path, _ = c.nodePath(id)
	return info, true
}

// Expand marks the node at pos as expanded by one more consumer, reading its
// directory on the first expansion. Read and watch failures are not
// reported; the node then simply stays unpopulated or unwatched.
func (c *Cache) Expand(pos Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	id, _, ok := c.lookup(pos)
	if !ok {
		return ErrNotFound
	}
	c.expand(id)
	return nil
}

// Collapse drops one consumer's expansion of the node at pos.
func (c *Cache) Collapse(pos Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	id, _, ok := c.lookup(pos)
	if !ok {
		return ErrNotFound
	}
	c.collapse(id)
	return nil
}

// Subscribe returns a new notification stream. Close it when done.
func (c *Cache) Subscribe() *Subscription {
	s := newSubscription(c)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		s.shutdown()
		return s
	}

	c.subMu.Lock()
	c.subs = append(c.subs, s)
	c.subMu.Unlock()
	return s
}

func (c *Cache) unsubscribe(s *Subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(x *Subscription) bool { return x == s })
}

// Stats reports the number of live nodes and active watches.
type Stats struct {
	Nodes   int
	Watches int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Nodes: c.nodes.count, Watches: len(c.watches)}
}

// Close tears the tree down: every watch is released, every metadata record
// dropped and every subscription closed. Further calls fail with ErrClosed
// or report not found.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.destroyNode(c.root)
	c.root = nilNode
	c.mu.Unlock()

	close(c.stopDrain)
	<-c.drained

	c.subMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subMu.Unlock()
	for _, s := range subs {
		s.shutdown()
	}

	if closer, ok := c.mon.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
