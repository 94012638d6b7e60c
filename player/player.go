// Package player defines the playback backend boundary. Modules drive a
// Backend; the program decides which one to inject. The in-tree Null backend
// produces no sound but keeps full state, which makes it usable for tests
// and headless setups.
package player

import (
	"context"
	"sync"
)

// Backend is a playback engine. Implementations must be safe for concurrent
// use; the hub dispatches method calls from concurrent batch elements.
type Backend interface {
	// Play starts playing the media at url from the beginning.
	Play(ctx context.Context, url string) error
	// Pause suspends playback, keeping the position.
	Pause(ctx context.Context) error
	// Resume continues playback after a pause.
	Resume(ctx context.Context) error
	// Stop ends playback and resets the position.
	Stop(ctx context.Context) error
	// Seek moves the position, in seconds from the start.
	Seek(ctx context.Context, pos int64) error
	// SetVolume sets the output volume in [0, 1].
	SetVolume(ctx context.Context, volume float64) error
	// Position reports the current position in seconds.
	Position(ctx context.Context) (int64, error)
	// Volume reports the current volume.
	Volume(ctx context.Context) (float64, error)
}

// Null is a silent Backend. It tracks the url, position and volume it is
// told about and plays nothing.
type Null struct {
	mu      sync.Mutex
	url     string
	playing bool
	pos     int64
	volume  float64
}

// NewNull returns a silent backend at full volume.
func NewNull() *Null {
	return &Null{volume: 1}
}

func (n *Null) Play(ctx context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = url
	n.playing = true
	n.pos = 0
	return nil
}

func (n *Null) Pause(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = false
	return nil
}

func (n *Null) Resume(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.url != "" {
		n.playing = true
	}
	return nil
}

func (n *Null) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = ""
	n.playing = false
	n.pos = 0
	return nil
}

func (n *Null) Seek(ctx context.Context, pos int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pos = pos
	return nil
}

func (n *Null) SetVolume(ctx context.Context, volume float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = volume
	return nil
}

func (n *Null) Position(ctx context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos, nil
}

func (n *Null) Volume(ctx context.Context) (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume, nil
}

// CurrentURL reports the url the backend was last told to play, or "" when
// stopped. Tests use it to observe backend interaction.
func (n *Null) CurrentURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}
