package hub

import "sync"

// EventKind discriminates hub events.
type EventKind string

const (
	EventModuleAdded     EventKind = "module_added"
	EventModuleRemoved   EventKind = "module_removed"
	EventPlayerStatus    EventKind = "player_status"
	EventPlaylistChanged EventKind = "playlist_changed"
	EventLibraryUpdated  EventKind = "library_updated"
)

// Event is one hub notification, delivered to subscribers and relayed to
// clients by the transport's event stream.
type Event struct {
	Kind   EventKind `json:"kind"`
	Source string    `json:"source,omitempty"` // module, player or playlist id
	Data   any       `json:"data,omitempty"`
}

// Notifier fans events out to subscribers. Sends are best-effort and
// non-blocking: a subscriber that stops draining its channel loses events
// rather than stalling the publisher.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan Event]struct{})}
}

// Publish delivers ev to every subscriber that has buffer room.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is backed up; drop.
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber goes away; it closes the channel.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, 16)
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	n.subs[ch] = struct{}{}

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
	}
}

// Close shuts the notifier down and closes every subscriber channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
