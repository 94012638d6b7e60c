package file

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/medleyhub/medley/hub"
	"github.com/medleyhub/medley/library"
	"github.com/medleyhub/medley/player"
)

// Player plays local files through the injected backend. Tags for the
// playing track come from the library index when the path is known there.
type Player struct {
	id      string
	store   *library.Store
	backend player.Backend

	mu      sync.Mutex
	state   hub.PlayerState
	current library.Track
}

func (p *Player) ID() string { return p.id }

// Play resolves path against the index (falling back to bare file info for
// unindexed paths) and starts the backend.
func (p *Player) Play(ctx context.Context, path string) error {
	track, err := p.store.Get(ctx, path)
	if errors.Is(err, library.ErrNotFound) {
		track = library.Track{Path: path, Title: filepath.Base(path)}
	} else if err != nil {
		return err
	}

	if err := p.backend.Play(ctx, path); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = hub.StatePlaying
	p.current = track
	p.mu.Unlock()
	return nil
}

func (p *Player) SetState(ctx context.Context, state hub.PlayerState) (hub.PlayerState, error) {
	var err error
	switch state {
	case hub.StatePaused:
		err = p.backend.Pause(ctx)
	case hub.StatePlaying:
		err = p.backend.Resume(ctx)
	case hub.StateStopped:
		err = p.backend.Stop(ctx)
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.state = state
	if state == hub.StateStopped {
		p.current = library.Track{}
	}
	p.mu.Unlock()
	return state, nil
}

func (p *Player) SetPos(ctx context.Context, pos int64) error {
	return p.backend.Seek(ctx, pos)
}

func (p *Player) SetVolume(ctx context.Context, volume float64) (float64, error) {
	if err := p.backend.SetVolume(ctx, volume); err != nil {
		return 0, err
	}
	return p.backend.Volume(ctx)
}

func (p *Player) Status(ctx context.Context) (hub.PlayerStatus, error) {
	pos, err := p.backend.Position(ctx)
	if err != nil {
		return hub.PlayerStatus{}, err
	}
	volume, err := p.backend.Volume(ctx)
	if err != nil {
		return hub.PlayerStatus{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	status := hub.PlayerStatus{
		State:  p.state,
		Pos:    pos,
		Volume: volume,
	}
	if status.State == "" {
		status.State = hub.StateStopped
	}
	if p.current.Path != "" {
		status.Name = p.current.Title
		status.Duration = p.current.Duration
		status.Tags = &hub.Tags{
			Title:    p.current.Title,
			Artist:   p.current.Artist,
			Album:    p.current.Album,
			Genre:    p.current.Genre,
			Duration: p.current.Duration,
		}
	}
	return status, nil
}
