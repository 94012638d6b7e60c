package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/medleyhub/medley/jsonrpc"
)

// fakeModule provides one browser, one player and one playlist.
type fakeModule struct {
	id       string
	browser  *fakeBrowser
	player   *fakePlayer
	playlist *SimplePlaylist
}

func newFakeModule(id string) *fakeModule {
	return &fakeModule{
		id:       id,
		browser:  &fakeBrowser{id: id + "_browser"},
		player:   &fakePlayer{id: id + "_player", status: PlayerStatus{State: StateStopped, Volume: 1}},
		playlist: NewSimplePlaylist(id+"_playlist", nil),
	}
}

func (m *fakeModule) ID() string { return m.id }
func (m *fakeModule) Info() Info {
	return Info{ID: m.id, Name: "Fake", Description: "a fake module"}
}

func (m *fakeModule) Methods() []jsonrpc.MethodDef {
	return []jsonrpc.MethodDef{{
		Method: "ping",
		Result: `{"type":"object"}`,
		Callback: func(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
			return map[string]any{"pong": true}, nil
		},
	}}
}

func (m *fakeModule) Browsers() []Browser   { return []Browser{m.browser} }
func (m *fakeModule) Players() []Player     { return []Player{m.player} }
func (m *fakeModule) Playlists() []Playlist { return []Playlist{m.playlist} }

type fakeBrowser struct {
	id    string
	items []Item
}

func (b *fakeBrowser) ID() string          { return b.id }
func (b *fakeBrowser) Name() string        { return "Fake browser" }
func (b *fakeBrowser) Description() string { return "browses nothing" }
func (b *fakeBrowser) List(ctx context.Context, path string, sort Sort) ([]Item, error) {
	if path == "missing" {
		return nil, fmt.Errorf("no such path")
	}
	items := append([]Item(nil), b.items...)
	SortItems(items, sort)
	return items, nil
}

type fakePlayer struct {
	id string

	mu     sync.Mutex
	status PlayerStatus
}

func (p *fakePlayer) ID() string { return p.id }
func (p *fakePlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = StatePlaying
	p.status.Name = path
	return nil
}
func (p *fakePlayer) SetState(ctx context.Context, s PlayerState) (PlayerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = s
	return s, nil
}
func (p *fakePlayer) SetPos(ctx context.Context, pos int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Pos = pos
	return nil
}
func (p *fakePlayer) SetVolume(ctx context.Context, v float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Volume = v
	return v, nil
}
func (p *fakePlayer) Status(ctx context.Context) (PlayerStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func testHub(t *testing.T) (*Hub, *jsonrpc.Dispatcher) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := jsonrpc.NewRegistry()
	h := New(reg, WithLogger(log))
	return h, jsonrpc.NewDispatcher(reg, jsonrpc.WithLogger(log))
}

func call(t *testing.T, d *jsonrpc.Dispatcher, method string, params string, out any) *jsonrpc.Error {
	t.Helper()
	req := fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"id":1}`, method)
	if params != "" {
		req = fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":%s,"id":1}`, method, params)
	}
	raw := d.Handle(t.Context(), []byte(req))
	var res struct {
		Result json.RawMessage `json:"result"`
		Error  *jsonrpc.Error  `json:"error"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("bad response %s: %v", raw, err)
	}
	if res.Error != nil {
		return res.Error
	}
	if out != nil {
		if err := json.Unmarshal(res.Result, out); err != nil {
			t.Fatalf("bad result %s: %v", res.Result, err)
		}
	}
	return nil
}

func TestHubModuleLifecycle(t *testing.T) {
	h, d := testHub(t)
	mod := newFakeModule("fake")

	if err := h.Register(mod); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := h.Register(newFakeModule("fake")); err == nil {
		t.Fatalf("duplicate module id should be rejected")
	}

	t.Run("module methods are dispatchable", func(t *testing.T) {
		var pong map[string]bool
		if err := call(t, d, "fake.ping", "", &pong); err != nil {
			t.Fatalf("fake.ping failed: %v", err)
		}
		if !pong["pong"] {
			t.Errorf("want pong")
		}
	})

	t.Run("module.get_list", func(t *testing.T) {
		var infos []Info
		if err := call(t, d, "module.get_list", `[["full"]]`, &infos); err != nil {
			t.Fatalf("module.get_list failed: %v", err)
		}
		if len(infos) != 1 || infos[0].ID != "fake" {
			t.Errorf("want [fake], got %v", infos)
		}
	})

	t.Run("module.get_list honors fields", func(t *testing.T) {
		var infos []Info
		if err := call(t, d, "module.get_list", `{"fields":["name"]}`, &infos); err != nil {
			t.Fatalf("module.get_list failed: %v", err)
		}
		if len(infos) != 1 || infos[0].Name != "Fake" {
			t.Fatalf("want named module, got %v", infos)
		}
		if infos[0].Description != "" {
			t.Errorf("description should be dropped when not requested, got %q", infos[0].Description)
		}
	})

	t.Run("module.get_info", func(t *testing.T) {
		var info Info
		if err := call(t, d, "module.get_info", `{"id":"fake"}`, &info); err != nil {
			t.Fatalf("module.get_info failed: %v", err)
		}
		if want, got := "a fake module", info.Description; want != got {
			t.Errorf("want %q, got %q", want, got)
		}
	})

	t.Run("module.get_methods", func(t *testing.T) {
		var methods []MethodInfo
		if err := call(t, d, "module.get_methods", `{"id":"fake"}`, &methods); err != nil {
			t.Fatalf("module.get_methods failed: %v", err)
		}
		if len(methods) != 1 || methods[0].Method != "fake.ping" {
			t.Errorf("want [fake.ping], got %v", methods)
		}
	})

	t.Run("unregister removes everything", func(t *testing.T) {
		h.Unregister("fake")
		if err := call(t, d, "fake.ping", "", nil); err == nil || err.Code != jsonrpc.ErrorCodeMethodNotFound {
			t.Errorf("want method not found after unregister, got %v", err)
		}
		if err := call(t, d, "browser.get_info", `{"id":"fake_browser"}`, nil); err == nil {
			t.Errorf("browser should be detached")
		}
		// Unregistering again is a no-op.
		h.Unregister("fake")
	})
}

func TestHubBrowserGroup(t *testing.T) {
	h, d := testHub(t)
	mod := newFakeModule("fake")
	mod.browser.items = []Item{
		{Name: "a.flac", Type: "file", Tags: &Tags{Title: "A"}},
		{Name: "b", Type: "directory"},
	}
	if err := h.Register(mod); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	t.Run("get_list full", func(t *testing.T) {
		var items []Item
		if err := call(t, d, "browser.get_list", `{"id":"fake_browser","path":"","fields":["full"]}`, &items); err != nil {
			t.Fatalf("browser.get_list failed: %v", err)
		}
		if len(items) != 2 || items[0].Tags == nil {
			t.Errorf("want full items with tags, got %v", items)
		}
	})

	t.Run("get_list without tags", func(t *testing.T) {
		var items []Item
		if err := call(t, d, "browser.get_list", `{"id":"fake_browser","path":"","fields":["name"]}`, &items); err != nil {
			t.Fatalf("browser.get_list failed: %v", err)
		}
		if items[0].Tags != nil {
			t.Errorf("tags should be stripped when not requested")
		}
	})

	t.Run("get_list honors sort", func(t *testing.T) {
		var items []Item
		if err := call(t, d, "browser.get_list", `{"id":"fake_browser","path":"","sort":{"field":"name","desc":true}}`, &items); err != nil {
			t.Fatalf("browser.get_list failed: %v", err)
		}
		if len(items) != 2 || items[0].Name != "b" || items[1].Name != "a.flac" {
			t.Errorf("want items by name descending, got %v", items)
		}
	})

	t.Run("unknown browser", func(t *testing.T) {
		err := call(t, d, "browser.get_list", `{"id":"nope","path":""}`, nil)
		if err == nil || err.Code != jsonrpc.ErrorCodeServerError {
			t.Errorf("want server error, got %v", err)
		}
	})

	t.Run("listing failure surfaces as server error", func(t *testing.T) {
		err := call(t, d, "browser.get_list", `{"id":"fake_browser","path":"missing"}`, nil)
		if err == nil || err.Code != jsonrpc.ErrorCodeServerError {
			t.Errorf("want server error, got %v", err)
		}
	})

	t.Run("missing required param", func(t *testing.T) {
		err := call(t, d, "browser.get_list", `{"id":"fake_browser"}`, nil)
		if err == nil || err.Code != jsonrpc.ErrorCodeInvalidParams {
			t.Errorf("want invalid params, got %v", err)
		}
	})
}

func TestHubPlayerGroup(t *testing.T) {
	h, d := testHub(t)
	mod := newFakeModule("fake")
	if err := h.Register(mod); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	events, cancel := h.Events().Subscribe()
	defer cancel()

	t.Run("play then status", func(t *testing.T) {
		var status PlayerStatus
		if err := call(t, d, "player.play", `{"id":"fake_player","path":"/music/a.flac"}`, &status); err != nil {
			t.Fatalf("player.play failed: %v", err)
		}
		if want, got := StatePlaying, status.State; want != got {
			t.Errorf("want state %q, got %q", want, got)
		}
		select {
		case ev := <-events:
			if ev.Kind != EventPlayerStatus || ev.Source != "fake_player" {
				t.Errorf("unexpected event %+v", ev)
			}
		default:
			t.Errorf("player.play should publish a status event")
		}
	})

	t.Run("set_state validates the state name", func(t *testing.T) {
		err := call(t, d, "player.set_state", `{"id":"fake_player","state":"warp"}`, nil)
		if err == nil || err.Code != jsonrpc.ErrorCodeInvalidParams {
			t.Errorf("want invalid params, got %v", err)
		}
	})

	t.Run("set_pos requires an integer", func(t *testing.T) {
		err := call(t, d, "player.set_pos", `{"id":"fake_player","pos":1.5}`, nil)
		if err == nil || err.Code != jsonrpc.ErrorCodeInvalidParams {
			t.Errorf("want invalid params, got %v", err)
		}
	})

	t.Run("get_status honors fields", func(t *testing.T) {
		mod.player.mu.Lock()
		mod.player.status.Tags = &Tags{Title: "A"}
		mod.player.mu.Unlock()

		var status PlayerStatus
		if err := call(t, d, "player.get_status", `{"id":"fake_player","fields":["full"]}`, &status); err != nil {
			t.Fatalf("player.get_status failed: %v", err)
		}
		if status.Tags == nil || status.Tags.Title != "A" {
			t.Fatalf("want tags with a full status, got %+v", status)
		}
		var bare PlayerStatus
		if err := call(t, d, "player.get_status", `{"id":"fake_player","fields":["state"]}`, &bare); err != nil {
			t.Fatalf("player.get_status failed: %v", err)
		}
		if bare.Tags != nil {
			t.Errorf("tags should be dropped when not requested, got %+v", bare.Tags)
		}
	})

	t.Run("set_volume requires a double", func(t *testing.T) {
		var res map[string]float64
		if err := call(t, d, "player.set_volume", `{"id":"fake_player","volume":0.5}`, &res); err != nil {
			t.Fatalf("player.set_volume failed: %v", err)
		}
		if want, got := 0.5, res["volume"]; want != got {
			t.Errorf("want volume %v, got %v", want, got)
		}
	})
}

func TestHubPlaylistGroup(t *testing.T) {
	h, d := testHub(t)
	mod := newFakeModule("fake")
	if err := h.Register(mod); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var entry Entry
	if err := call(t, d, "playlist.add", `{"id":"fake_playlist","name":"A","path":"/music/a.flac"}`, &entry); err != nil {
		t.Fatalf("playlist.add failed: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("entry id should be assigned")
	}

	var entries []Entry
	if err := call(t, d, "playlist.get_list", `{"id":"fake_playlist"}`, &entries); err != nil {
		t.Fatalf("playlist.get_list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("want [%s], got %v", entry.ID, entries)
	}

	if err := call(t, d, "playlist.play", fmt.Sprintf(`{"id":"fake_playlist","entry":%q}`, entry.ID), nil); err != nil {
		t.Fatalf("playlist.play failed: %v", err)
	}

	if err := call(t, d, "playlist.remove", fmt.Sprintf(`{"id":"fake_playlist","entry":%q}`, entry.ID), nil); err != nil {
		t.Fatalf("playlist.remove failed: %v", err)
	}
	if err := call(t, d, "playlist.remove", fmt.Sprintf(`{"id":"fake_playlist","entry":%q}`, entry.ID), nil); err == nil {
		t.Errorf("removing a removed entry should fail")
	}
}

func TestBuiltinRegistrationConflictIsLogged(t *testing.T) {
	reg := jsonrpc.NewRegistry()
	New(reg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	// A second hub on the same registry loses all its builtins to the first.
	var buf bytes.Buffer
	New(reg, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	if !strings.Contains(buf.String(), "built-in methods could not be registered") {
		t.Errorf("want a warning about lost builtins, got %q", buf.String())
	}
}

func TestSortItems(t *testing.T) {
	items := func() []Item {
		return []Item{
			{Name: "b.flac", Type: "file", Tags: &Tags{Title: "Zebra", Duration: 10}},
			{Name: "a.flac", Type: "file", Tags: &Tags{Duration: 30}},
			{Name: "sub", Type: "directory"},
		}
	}

	t.Run("default orders by name", func(t *testing.T) {
		got := items()
		SortItems(got, Sort{})
		if got[0].Name != "a.flac" || got[1].Name != "b.flac" || got[2].Name != "sub" {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("title falls back to name when untagged", func(t *testing.T) {
		got := items()
		SortItems(got, Sort{Field: "title"})
		// Keys are "a.flac", "sub" and "Zebra".
		if got[0].Name != "a.flac" || got[1].Name != "sub" || got[2].Name != "b.flac" {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("duration descending", func(t *testing.T) {
		got := items()
		SortItems(got, Sort{Field: "duration", Desc: true})
		if got[0].Name != "a.flac" || got[1].Name != "b.flac" || got[2].Name != "sub" {
			t.Errorf("unexpected order %v", got)
		}
	})
}
