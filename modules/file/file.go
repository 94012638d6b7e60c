// Package file is the local-media module: a browser over the filesystem
// enriched with library tags, a player that drives the injected backend,
// and an in-memory playlist.
package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/medleyhub/medley/hub"
	"github.com/medleyhub/medley/internal/logctx"
	"github.com/medleyhub/medley/jsonrpc"
	"github.com/medleyhub/medley/library"
	"github.com/medleyhub/medley/player"
)

const moduleID = "file"

// Module exposes local media files. It implements hub.Module plus the
// browser, player and playlist provider surfaces.
type Module struct {
	store    *library.Store
	scanner  *library.Scanner
	roots    []string
	log      *slog.Logger
	browser  *Browser
	player   *Player
	playlist *hub.SimplePlaylist

	scanMu sync.Mutex
}

// Option configures the module.
type Option func(*Module)

// WithLogger sets the module's structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) { m.log = log }
}

// New builds the file module over the given library store and playback
// backend. roots are the media directories the browser exposes and the
// scanner indexes.
func New(store *library.Store, scanner *library.Scanner, backend player.Backend, roots []string, opts ...Option) *Module {
	m := &Module{
		store:   store,
		scanner: scanner,
		roots:   roots,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.browser = &Browser{store: store, roots: roots}
	m.player = &Player{id: moduleID + "_player", store: store, backend: backend}
	m.playlist = hub.NewSimplePlaylist(moduleID+"_playlist", func(ctx context.Context, e hub.Entry) error {
		return m.player.Play(ctx, e.Path)
	})
	return m
}

func (m *Module) ID() string { return moduleID }

func (m *Module) Info() hub.Info {
	return hub.Info{
		ID:          moduleID,
		Name:        "Files",
		Description: "Browse and play local media files",
	}
}

func (m *Module) Browsers() []hub.Browser   { return []hub.Browser{m.browser} }
func (m *Module) Players() []hub.Player     { return []hub.Player{m.player} }
func (m *Module) Playlists() []hub.Playlist { return []hub.Playlist{m.playlist} }

// Methods contributes file.scan and file.search.
func (m *Module) Methods() []jsonrpc.MethodDef {
	return []jsonrpc.MethodDef{
		{
			Method:   "scan",
			Params:   `[{"name":"full","type":"boolean","required":false}]`,
			Result:   `{"type":"object"}`,
			Callback: m.scan,
		},
		{
			Method:   "search",
			Params:   `[{"name":"query","type":"string"}]`,
			Result:   `{"type":"array"}`,
			Callback: m.search,
		},
	}
}

// scan reindexes the media roots. Scans are serialized; a second caller
// waits for the running one to finish before starting its own.
func (m *Module) scan(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	if m.scanner == nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeServerError, "no scanner configured")
	}
	full, _ := args["full"].(bool)

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	ctx = logctx.WithModuleData(ctx, &logctx.ModuleData{ModuleID: moduleID})
	m.log.InfoContext(ctx, "scanning media roots",
		slog.Int("roots", len(m.roots)), slog.Bool("full", full))
	run := m.scanner.Scan
	if full {
		run = m.scanner.Rescan
	}
	if err := run(ctx); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeServerError, "scan failed: %v", err)
	}
	count, cerr := m.store.Count(ctx)
	if cerr != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeServerError, "scan failed: %v", cerr)
	}
	return map[string]any{"tracks": count}, nil
}

func (m *Module) search(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	tracks, serr := m.store.Search(ctx, args["query"].(string))
	if serr != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeServerError, "search failed: %v", serr)
	}
	items := make([]hub.Item, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, trackItem(t))
	}
	return items, nil
}

func trackItem(t library.Track) hub.Item {
	return hub.Item{
		Name: filepath.Base(t.Path),
		Type: "file",
		Tags: &hub.Tags{
			Title:    t.Title,
			Artist:   t.Artist,
			Album:    t.Album,
			Genre:    t.Genre,
			Duration: t.Duration,
		},
	}
}

// Browser lists the media roots and their subtrees. Directories come from
// the filesystem so new folders show up before the next scan; file tags
// come from the library index.
type Browser struct {
	store *library.Store
	roots []string
}

func (b *Browser) ID() string          { return moduleID + "_browser" }
func (b *Browser) Name() string        { return "Files" }
func (b *Browser) Description() string { return "Local media directories" }

// List returns the children of path. The root ("") lists the configured
// media roots themselves. Only paths under a configured root are served.
func (b *Browser) List(ctx context.Context, path string, sort hub.Sort) ([]hub.Item, error) {
	if path == "" {
		items := make([]hub.Item, 0, len(b.roots))
		for _, root := range b.roots {
			items = append(items, hub.Item{Name: root, Type: "directory"})
		}
		hub.SortItems(items, sort)
		return items, nil
	}
	// Collapse any ".." segments before the root check so a wire path
	// cannot escape the configured roots.
	path = filepath.Clean(path)
	if !b.underRoot(path) {
		return nil, os.ErrPermission
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	tracks, err := b.store.ListDir(ctx, path)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]*hub.Tags, len(tracks))
	for _, t := range tracks {
		item := trackItem(t)
		tags[filepath.Base(t.Path)] = item.Tags
	}

	var items []hub.Item
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			items = append(items, hub.Item{Name: e.Name(), Type: "directory"})
			continue
		}
		items = append(items, hub.Item{Name: e.Name(), Type: "file", Tags: tags[e.Name()]})
	}
	hub.SortItems(items, sort)
	return items, nil
}

// underRoot expects path to be cleaned already; roots are cleaned here so a
// trailing slash in the configuration does not defeat the prefix check.
func (b *Browser) underRoot(path string) bool {
	for _, root := range b.roots {
		root = filepath.Clean(root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
