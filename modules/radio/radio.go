// Package radio is the web-radio module: a browser over a remote station
// directory and a player that tunes the backend to a station URL.
package radio

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/medleyhub/medley/hub"
	"github.com/medleyhub/medley/jsonrpc"
	"github.com/medleyhub/medley/player"
)

const moduleID = "radio"

// Module exposes the station directory. It implements hub.Module plus the
// browser and player provider surfaces. Radio has no playlist; stations are
// tuned, not queued.
type Module struct {
	dir     *Directory
	log     *slog.Logger
	browser *Browser
	player  *Player
}

// Option configures the module.
type Option func(*Module)

// WithLogger sets the module's structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) { m.log = log }
}

// New builds the radio module over the given station directory and backend.
func New(dir *Directory, backend player.Backend, opts ...Option) *Module {
	m := &Module{
		dir: dir,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.browser = &Browser{dir: dir}
	m.player = &Player{id: moduleID + "_player", dir: dir, backend: backend}
	return m
}

func (m *Module) ID() string { return moduleID }

func (m *Module) Info() hub.Info {
	return hub.Info{
		ID:          moduleID,
		Name:        "Radio",
		Description: "Browse and play web radio stations",
	}
}

func (m *Module) Browsers() []hub.Browser { return []hub.Browser{m.browser} }
func (m *Module) Players() []hub.Player   { return []hub.Player{m.player} }

// Methods contributes radio.search, which returns full station records
// including the stream URL to tune with player.play.
func (m *Module) Methods() []jsonrpc.MethodDef {
	return []jsonrpc.MethodDef{
		{
			Method:   "search",
			Params:   `[{"name":"query","type":"string"}]`,
			Result:   `{"type":"array"}`,
			Callback: m.search,
		},
	}
}

func (m *Module) search(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	stations, serr := m.dir.Search(ctx, args["query"].(string))
	if serr != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeServerError, "station directory: %v", serr)
	}
	if stations == nil {
		stations = []Station{}
	}
	return stations, nil
}

// Browser navigates the directory by genre: the root lists genres, a genre
// path lists its stations.
type Browser struct {
	dir *Directory
}

func (b *Browser) ID() string          { return moduleID + "_browser" }
func (b *Browser) Name() string        { return "Radio" }
func (b *Browser) Description() string { return "Web radio station directory" }

func (b *Browser) List(ctx context.Context, path string, sort hub.Sort) ([]hub.Item, error) {
	if path == "" {
		genres, err := b.dir.Genres(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]hub.Item, 0, len(genres))
		for _, g := range genres {
			items = append(items, hub.Item{Name: g, Type: "category"})
		}
		hub.SortItems(items, sort)
		return items, nil
	}

	stations, err := b.dir.Stations(ctx, path)
	if err != nil {
		return nil, err
	}
	items := make([]hub.Item, 0, len(stations))
	for _, s := range stations {
		items = append(items, hub.Item{
			Name: s.Name,
			Type: "media",
			Tags: &hub.Tags{Title: s.Name, Genre: s.Genre},
		})
	}
	hub.SortItems(items, sort)
	return items, nil
}

// Player tunes the backend to a station stream. Play accepts either a
// station URL or a station id known to the directory.
type Player struct {
	id      string
	dir     *Directory
	backend player.Backend

	mu      sync.Mutex
	state   hub.PlayerState
	station Station
}

func (p *Player) ID() string { return p.id }

func (p *Player) Play(ctx context.Context, path string) error {
	station, err := p.dir.Resolve(ctx, path)
	if err != nil {
		return err
	}
	if err := p.backend.Play(ctx, station.URL); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = hub.StatePlaying
	p.station = station
	p.mu.Unlock()
	return nil
}

func (p *Player) SetState(ctx context.Context, state hub.PlayerState) (hub.PlayerState, error) {
	var err error
	switch state {
	case hub.StatePaused:
		// A live stream cannot pause; pausing a radio stops it.
		state = hub.StateStopped
		err = p.backend.Stop(ctx)
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
		p.station = Station{}
	}
	p.mu.Unlock()
	return state, nil
}

// SetPos is meaningless on a live stream.
func (p *Player) SetPos(ctx context.Context, pos int64) error {
	return errLiveStream
}

func (p *Player) SetVolume(ctx context.Context, volume float64) (float64, error) {
	if err := p.backend.SetVolume(ctx, volume); err != nil {
		return 0, err
	}
	return p.backend.Volume(ctx)
}

func (p *Player) Status(ctx context.Context) (hub.PlayerStatus, error) {
	volume, err := p.backend.Volume(ctx)
	if err != nil {
		return hub.PlayerStatus{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	status := hub.PlayerStatus{
		State:  p.state,
		Volume: volume,
	}
	if status.State == "" {
		status.State = hub.StateStopped
	}
	if p.station.URL != "" {
		status.Name = p.station.Name
		status.Tags = &hub.Tags{Title: p.station.Name, Genre: p.station.Genre}
	}
	return status, nil
}
