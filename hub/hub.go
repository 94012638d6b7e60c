package hub

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/medleyhub/medley/jsonrpc"
)

// Info describes a module to clients.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Module is one independently-developed media subsystem. A module
// contributes a JSON-RPC method table registered under its id as the method
// group, and may additionally provide browser, player or playlist instances
// through the optional provider interfaces.
type Module interface {
	ID() string
	Info() Info
	Methods() []jsonrpc.MethodDef
}

// BrowserProvider is implemented by modules that expose browsers.
type BrowserProvider interface {
	Browsers() []Browser
}

// PlayerProvider is implemented by modules that expose players.
type PlayerProvider interface {
	Players() []Player
}

// PlaylistProvider is implemented by modules that expose playlists.
type PlaylistProvider interface {
	Playlists() []Playlist
}

type moduleEntry struct {
	module Module
	defs   []jsonrpc.MethodDef
}

// Hub owns the method registry and the tables of modules, browsers, players
// and playlists. All of its own state is guarded by one mutex; the registry
// has its own locking and is never touched under the hub lock's critical
// sections that run module code.
type Hub struct {
	reg      *jsonrpc.Registry
	log      *slog.Logger
	notifier *Notifier

	mu        sync.Mutex
	modules   map[string]*moduleEntry
	browsers  map[string]Browser
	players   map[string]Player
	playlists map[string]Playlist
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Hub) { h.log = log }
}

// New builds a hub over the given registry and installs the built-in
// "module", "browser", "player" and "playlist" method groups.
func New(reg *jsonrpc.Registry, opts ...Option) *Hub {
	h := &Hub{
		reg:       reg,
		log:       slog.Default(),
		notifier:  NewNotifier(),
		modules:   make(map[string]*moduleEntry),
		browsers:  make(map[string]Browser),
		players:   make(map[string]Player),
		playlists: make(map[string]Playlist),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerBuiltins()
	return h
}

// Registry returns the method registry the hub dispatches through.
func (h *Hub) Registry() *jsonrpc.Registry { return h.reg }

// Events returns the hub's event notifier.
func (h *Hub) Events() *Notifier { return h.notifier }

// Register installs a module: its method table goes into the registry under
// the module id, and any provided browsers, players and playlists become
// addressable through the built-in groups.
func (h *Hub) Register(m Module) error {
	id := m.ID()
	defs := m.Methods()

	h.mu.Lock()
	if _, exists := h.modules[id]; exists {
		h.mu.Unlock()
		return fmt.Errorf("hub: module %q already registered", id)
	}
	h.modules[id] = &moduleEntry{module: m, defs: defs}
	h.mu.Unlock()

	if failed := h.reg.RegisterMany(id, defs); failed > 0 {
		h.log.Warn("some module methods could not be registered",
			slog.String("module", id), slog.Int("failed", failed))
	}

	h.attach(m)
	h.notifier.Publish(Event{Kind: EventModuleAdded, Source: id})
	h.log.Info("module registered", slog.String("module", id))
	return nil
}

// Unregister removes a module and everything it provided. Unregistering an
// unknown id is a no-op.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	entry, ok := h.modules[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.modules, id)
	h.mu.Unlock()

	h.reg.UnregisterMany(id, entry.defs)
	h.detach(entry.module)
	h.notifier.Publish(Event{Kind: EventModuleRemoved, Source: id})
	h.log.Info("module unregistered", slog.String("module", id))
}

func (h *Hub) attach(m Module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := m.(BrowserProvider); ok {
		for _, b := range p.Browsers() {
			h.browsers[b.ID()] = b
		}
	}
	if p, ok := m.(PlayerProvider); ok {
		for _, pl := range p.Players() {
			h.players[pl.ID()] = pl
		}
	}
	if p, ok := m.(PlaylistProvider); ok {
		for _, pl := range p.Playlists() {
			h.playlists[pl.ID()] = pl
		}
	}
}

func (h *Hub) detach(m Module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := m.(BrowserProvider); ok {
		for _, b := range p.Browsers() {
			delete(h.browsers, b.ID())
		}
	}
	if p, ok := m.(PlayerProvider); ok {
		for _, pl := range p.Players() {
			delete(h.players, pl.ID())
		}
	}
	if p, ok := m.(PlaylistProvider); ok {
		for _, pl := range p.Playlists() {
			delete(h.playlists, pl.ID())
		}
	}
}

// Modules lists the registered modules in id order.
func (h *Hub) Modules() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]Info, 0, len(h.modules))
	for _, entry := range h.modules {
		infos = append(infos, entry.module.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (h *Hub) module(id string) (*moduleEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.modules[id]
	return e, ok
}

func (h *Hub) browser(id string) (Browser, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.browsers[id]
	return b, ok
}

func (h *Hub) player(id string) (Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return p, ok
}

func (h *Hub) playlist(id string) (Playlist, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.playlists[id]
	return p, ok
}
