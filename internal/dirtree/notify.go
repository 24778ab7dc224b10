package dirtree

import (
	"fmt"
	"sync"
)

// Kind is the kind of structural change a Notification reports.
type Kind int

const (
	// Inserted: a node now exists at Position.
	Inserted Kind = iota
	// Deleted: the node at Position (before removal) is gone.
	Deleted
	// HasChildrenChanged: the node at Position may have gained or lost children.
	HasChildrenChanged
	// Changed: the metadata of the node at Position was refreshed.
	Changed
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Deleted:
		return "deleted"
	case HasChildrenChanged:
		return "has-children-changed"
	case Changed:
		return "changed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Notification describes one mutation. Notifications are delivered in the
// order the mutations happened; each Position is valid for the tree as it
// was right after that mutation.
type Notification struct {
	Kind     Kind
	Position Position
}

func (n Notification) String() string {
	return n.Kind.String() + "(" + n.Position.String() + ")"
}

// Subscription delivers notifications on C without ever blocking the cache:
// pending notifications queue up until the receiver catches up.
type Subscription struct {
	C <-chan Notification

	out   chan Notification
	mu    sync.Mutex
	queue []Notification
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	owner *Cache
}

func newSubscription(owner *Cache) *Subscription {
	s := &Subscription{
		out:   make(chan Notification),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		owner: owner,
	}
	s.C = s.out
	go s.pump()
	return s
}

// push queues n for delivery. The queue grows without bound while the
// receiver is stalled; a view that stops reading holds every pending
// notification in memory until it resumes or closes.
func (s *Subscription) push(n Notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves queued notifications onto C until the subscription closes.
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, n := range batch {
			select {
			case s.out <- n:
			case <-s.done:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

// Close stops delivery and closes C. Notifications still queued are dropped.
func (s *Subscription) Close() {
	s.shutdown()
	if s.owner != nil {
		s.owner.unsubscribe(s)
	}
}

func (s *Subscription) shutdown() {
	s.once.Do(func() { close(s.done) })
}
