package hub

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newEntryID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// SimplePlaylist is an in-memory Playlist with ULID entry ids. A module that
// needs nothing fancier than an ordered queue can embed or reuse it; the
// player hook is called when an entry is played.
type SimplePlaylist struct {
	id     string
	onPlay func(ctx context.Context, e Entry) error

	mu      sync.Mutex
	entries []Entry
}

// NewSimplePlaylist builds an empty playlist. onPlay may be nil; playing an
// entry then only moves the current marker.
func NewSimplePlaylist(id string, onPlay func(ctx context.Context, e Entry) error) *SimplePlaylist {
	return &SimplePlaylist{id: id, onPlay: onPlay}
}

func (p *SimplePlaylist) ID() string { return p.id }

func (p *SimplePlaylist) Entries(ctx context.Context) ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out, nil
}

func (p *SimplePlaylist) Add(ctx context.Context, name, path string) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := Entry{
		ID:   newEntryID(),
		Name: name,
		Path: path,
	}
	p.entries = append(p.entries, entry)
	return entry, nil
}

func (p *SimplePlaylist) Play(ctx context.Context, entryID string) error {
	p.mu.Lock()
	var target *Entry
	for i := range p.entries {
		p.entries[i].Current = p.entries[i].ID == entryID
		if p.entries[i].Current {
			target = &p.entries[i]
		}
	}
	if target == nil {
		p.mu.Unlock()
		return fmt.Errorf("no entry %q", entryID)
	}
	entry := *target
	p.mu.Unlock()

	if p.onPlay != nil {
		return p.onPlay(ctx, entry)
	}
	return nil
}

func (p *SimplePlaylist) Remove(ctx context.Context, entryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].ID == entryID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no entry %q", entryID)
}
