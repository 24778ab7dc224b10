// Package monitor delivers per-directory change events from fsnotify as a
// single queue of Created/Deleted/Changed events tagged with the watch handle
// that asked for them.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("monitor: closed")

// Op is the kind of change reported for a directory entry.
type Op int

const (
	Created Op = iota
	Deleted
	Changed
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Changed:
		return "changed"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Handle identifies one Watch registration. The zero Handle is never issued.
type Handle uint64

// Event is a change to the entry Name inside the directory watched by Handle.
type Event struct {
	Handle Handle
	Op     Op
	Name   string
}

// Options configures a Monitor.
type Options struct {
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
	// Budget enables watch-count warnings; zero values use defaults.
	Budget Budget
	Logger *slog.Logger
}

// Monitor multiplexes fsnotify directory watches across handles. Several
// handles may watch the same directory; the underlying watch goes away with
// the last of them.
type Monitor struct {
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger
	budget    *budget

	mu     sync.Mutex
	next   Handle
	dirOf  map[Handle]string
	byDir  map[string]map[Handle]struct{}
	closed bool
	stop   chan struct{}
	done   chan struct{}
	events chan Event
}

// New creates a Monitor and starts its event loop.
func New(opts Options) (*Monitor, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		fsWatcher: fsw,
		logger:    logger,
		budget:    newBudget(opts.Budget, logger),
		dirOf:     make(map[Handle]string),
		byDir:     make(map[string]map[Handle]struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		events:    make(chan Event, opts.EventBuffer),
	}
	go m.run()
	return m, nil
}

// Watch starts delivering events for the entries of dir.
func (m *Monitor) Watch(dir string) (Handle, error) {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	handles, ok := m.byDir[dir]
	if !ok {
		if err := m.fsWatcher.Add(dir); err != nil {
			return 0, fmt.Errorf("monitor: watch %s: %w", dir, err)
		}
		handles = make(map[Handle]struct{})
		m.byDir[dir] = handles
	}

	m.next++
	h := m.next
	handles[h] = struct{}{}
	m.dirOf[h] = dir

	m.budget.check(len(m.byDir))
	return h, nil
}

// Unwatch stops delivering events for h. Events already queued for h are
// still delivered; receivers must ignore handles they no longer know.
func (m *Monitor) Unwatch(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir, ok := m.dirOf[h]
	if !ok {
		return
	}
	delete(m.dirOf, h)

	handles := m.byDir[dir]
	delete(handles, h)
	if len(handles) > 0 {
		return
	}
	delete(m.byDir, dir)
	if m.closed {
		return
	}
	if err := m.fsWatcher.Remove(dir); err != nil {
		// The directory may already be gone, which drops the watch anyway.
		m.logger.Debug("monitor: remove watch", "dir", dir, "err", err)
	}
}

// Events returns the event queue. It is closed after Close.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Stats returns the number of watched directories and live handles.
func (m *Monitor) Stats() (dirs, handles int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byDir), len(m.dirOf)
}

// Close stops the event loop and releases every watch.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	err := m.fsWatcher.Close()
	<-m.done
	return err
}

// run translates fsnotify events until Close.
func (m *Monitor) run() {
	defer func() {
		close(m.events)
		close(m.done)
	}()

	for {
		select {
		case <-m.stop:
			return
		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			if !m.dispatch(event) {
				return
			}
		case err, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			// Overflow and similar errors are not fatal; keep watching.
			m.logger.Debug("monitor: error", "err", err)
		}
	}
}

// dispatch fans one fsnotify event out to the handles watching its parent
// directory. It returns false when the monitor is stopping.
func (m *Monitor) dispatch(event fsnotify.Event) bool {
	op, ok := translate(event.Op)
	if !ok {
		return true
	}
	dir := filepath.Dir(event.Name)
	name := filepath.Base(event.Name)

	m.mu.Lock()
	targets := make([]Handle, 0, len(m.byDir[dir]))
	for h := range m.byDir[dir] {
		targets = append(targets, h)
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		return true
	}
	m.logger.Debug("monitor: event", "op", op, "dir", dir, "name", name)

	for _, h := range targets {
		select {
		case m.events <- Event{Handle: h, Op: op, Name: name}:
		case <-m.stop:
			return false
		}
	}
	return true
}

// translate maps fsnotify ops onto the three kinds consumers care about. A
// rename reports the old name, so it is a deletion; the new name arrives as
// a separate Create.
func translate(op fsnotify.Op) (Op, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return Created, true
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Deleted, true
	case op&(fsnotify.Write|fsnotify.Chmod) != 0:
		return Changed, true
	}
	return 0, false
}
