package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/medleyhub/medley/jsonrpc"
)

// MethodInfo is one entry of the module.get_methods introspection result.
type MethodInfo struct {
	Method string          `json:"method"`
	Params jsonrpc.Schema  `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// resultSchema derives the documentation-only result schema of a method from
// its Go result type. The registry treats unparsable text as absent, so a
// reflection failure silently degrades instead of breaking registration.
func resultSchema(v any) string {
	s := jsonschema.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

func (h *Hub) registerBuiltins() {
	failed := 0

	failed += h.reg.RegisterMany("module", []jsonrpc.MethodDef{
		{
			Method:   "get_list",
			Params:   `[{"name":"fields","type":"array","required":false}]`,
			Result:   `{"type":"array"}`,
			Callback: h.moduleGetList,
		},
		{
			Method:   "get_info",
			Params:   `[{"name":"id","type":"string"}]`,
			Result:   resultSchema(&Info{}),
			Callback: h.moduleGetInfo,
		},
		{
			Method:   "get_methods",
			Params:   `[{"name":"id","type":"string"}]`,
			Result:   `{"type":"array"}`,
			Callback: h.moduleGetMethods,
		},
	})

	failed += h.reg.RegisterMany("browser", []jsonrpc.MethodDef{
		{
			Method:   "get_info",
			Params:   `[{"name":"id","type":"string"}]`,
			Result:   resultSchema(&browserInfo{}),
			Callback: h.browserGetInfo,
		},
		{
			Method: "get_list",
			Params: `[
				{"name":"id","type":"string"},
				{"name":"path","type":"string"},
				{"name":"fields","type":"array","required":false},
				{"name":"sort","type":"object","required":false}
			]`,
			Result:   `{"type":"array"}`,
			Callback: h.browserGetList,
		},
	})

	failed += h.reg.RegisterMany("player", []jsonrpc.MethodDef{
		{
			Method:   "play",
			Params:   `[{"name":"id","type":"string"},{"name":"path","type":"string"}]`,
			Result:   resultSchema(&PlayerStatus{}),
			Callback: h.playerPlay,
		},
		{
			Method:   "set_state",
			Params:   `[{"name":"id","type":"string"},{"name":"state","type":"string"}]`,
			Result:   `{"type":"object"}`,
			Callback: h.playerSetState,
		},
		{
			Method:   "set_pos",
			Params:   `[{"name":"id","type":"string"},{"name":"pos","type":"integer"}]`,
			Result:   `{"type":"object"}`,
			Callback: h.playerSetPos,
		},
		{
			Method:   "set_volume",
			Params:   `[{"name":"id","type":"string"},{"name":"volume","type":"double"}]`,
			Result:   `{"type":"object"}`,
			Callback: h.playerSetVolume,
		},
		{
			Method: "get_status",
			Params: `[
				{"name":"id","type":"string"},
				{"name":"fields","type":"array","required":false}
			]`,
			Result:   resultSchema(&PlayerStatus{}),
			Callback: h.playerGetStatus,
		},
	})

	failed += h.reg.RegisterMany("playlist", []jsonrpc.MethodDef{
		{
			Method:   "get_list",
			Params:   `[{"name":"id","type":"string"}]`,
			Result:   `{"type":"array"}`,
			Callback: h.playlistGetList,
		},
		{
			Method:   "add",
			Params:   `[{"name":"id","type":"string"},{"name":"name","type":"string"},{"name":"path","type":"string"}]`,
			Result:   resultSchema(&Entry{}),
			Callback: h.playlistAdd,
		},
		{
			Method:   "play",
			Params:   `[{"name":"id","type":"string"},{"name":"entry","type":"string"}]`,
			Result:   `{"type":"object"}`,
			Callback: h.playlistPlay,
		},
		{
			Method:   "remove",
			Params:   `[{"name":"id","type":"string"},{"name":"entry","type":"string"}]`,
			Result:   `{"type":"object"}`,
			Callback: h.playlistRemove,
		},
	})

	if failed > 0 {
		h.log.Warn("some built-in methods could not be registered", slog.Int("failed", failed))
	}
}

func serverError(format string, args ...any) *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.ErrorCodeServerError, format, args...)
}

// wantsField reports whether the optional "fields" argument asks for name.
// An absent fields argument and the "full" selector both mean everything.
func wantsField(args map[string]any, name string) bool {
	fields, ok := args["fields"].([]any)
	if !ok {
		return true
	}
	return slices.Contains(fields, any("full")) || slices.Contains(fields, any(name))
}

// parseSort reads the optional "sort" argument, an object with a "field"
// name and a "desc" flag. Anything malformed degrades to the natural order.
func parseSort(args map[string]any) Sort {
	obj, ok := args["sort"].(map[string]any)
	if !ok {
		return Sort{}
	}
	var s Sort
	if f, ok := obj["field"].(string); ok {
		s.Field = f
	}
	if d, ok := obj["desc"].(bool); ok {
		s.Desc = d
	}
	return s
}

// module group ---------------------------------------------------------------

func (h *Hub) moduleGetList(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	infos := h.Modules()
	if !wantsField(args, "name") {
		for i := range infos {
			infos[i].Name = ""
		}
	}
	if !wantsField(args, "description") {
		for i := range infos {
			infos[i].Description = ""
		}
	}
	return infos, nil
}

func (h *Hub) moduleGetInfo(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	entry, ok := h.module(id)
	if !ok {
		return nil, serverError("unknown module %q", id)
	}
	return entry.module.Info(), nil
}

func (h *Hub) moduleGetMethods(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	entry, ok := h.module(id)
	if !ok {
		return nil, serverError("unknown module %q", id)
	}

	infos := make([]MethodInfo, 0, len(entry.defs))
	for _, def := range entry.defs {
		mi := MethodInfo{Method: id + "." + def.Method}
		if s, perr := jsonrpc.ParseSchema([]byte(def.Params)); perr == nil {
			mi.Params = s
		}
		if json.Valid([]byte(def.Result)) {
			mi.Result = json.RawMessage(def.Result)
		}
		infos = append(infos, mi)
	}
	return infos, nil
}

// browser group --------------------------------------------------------------

type browserInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Hub) browserGetInfo(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	b, ok := h.browser(id)
	if !ok {
		return nil, serverError("unknown browser %q", id)
	}
	return browserInfo{ID: b.ID(), Name: b.Name(), Description: b.Description()}, nil
}

func (h *Hub) browserGetList(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	b, ok := h.browser(id)
	if !ok {
		return nil, serverError("unknown browser %q", id)
	}

	path, _ := args["path"].(string)
	items, lerr := b.List(ctx, path, parseSort(args))
	if lerr != nil {
		return nil, serverError("browser %q: %v", id, lerr)
	}
	if items == nil {
		items = []Item{}
	}
	// Clients not asking for tags get the bare listing.
	if !wantsField(args, "tags") {
		for i := range items {
			items[i].Tags = nil
		}
	}
	return items, nil
}

// player group ---------------------------------------------------------------

func (h *Hub) playerPlay(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	p, ok := h.player(id)
	if !ok {
		return nil, serverError("unknown player %q", id)
	}
	if perr := p.Play(ctx, args["path"].(string)); perr != nil {
		return nil, serverError("player %q: %v", id, perr)
	}
	return h.publishStatus(ctx, p)
}

func (h *Hub) playerSetState(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	p, ok := h.player(id)
	if !ok {
		return nil, serverError("unknown player %q", id)
	}
	state, valid := ParsePlayerState(args["state"].(string))
	if !valid {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "Invalid params")
	}
	newState, serr := p.SetState(ctx, state)
	if serr != nil {
		return nil, serverError("player %q: %v", id, serr)
	}
	h.notifier.Publish(Event{Kind: EventPlayerStatus, Source: id, Data: map[string]any{"state": newState}})
	return map[string]any{"state": newState}, nil
}

func (h *Hub) playerSetPos(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	p, ok := h.player(id)
	if !ok {
		return nil, serverError("unknown player %q", id)
	}
	pos := args["pos"].(int64)
	if serr := p.SetPos(ctx, pos); serr != nil {
		return nil, serverError("player %q: %v", id, serr)
	}
	return map[string]any{"pos": pos}, nil
}

func (h *Hub) playerSetVolume(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	p, ok := h.player(id)
	if !ok {
		return nil, serverError("unknown player %q", id)
	}
	volume, serr := p.SetVolume(ctx, args["volume"].(float64))
	if serr != nil {
		return nil, serverError("player %q: %v", id, serr)
	}
	return map[string]any{"volume": volume}, nil
}

func (h *Hub) playerGetStatus(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	p, ok := h.player(id)
	if !ok {
		return nil, serverError("unknown player %q", id)
	}
	status, serr := p.Status(ctx)
	if serr != nil {
		return nil, serverError("player %q: %v", id, serr)
	}
	if !wantsField(args, "tags") {
		status.Tags = nil
	}
	return status, nil
}

func (h *Hub) publishStatus(ctx context.Context, p Player) (any, *jsonrpc.Error) {
	status, err := p.Status(ctx)
	if err != nil {
		return nil, serverError("player %q: %v", p.ID(), err)
	}
	h.notifier.Publish(Event{Kind: EventPlayerStatus, Source: p.ID(), Data: status})
	return status, nil
}

// playlist group -------------------------------------------------------------

func (h *Hub) playlistGetList(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	pl, ok := h.playlist(id)
	if !ok {
		return nil, serverError("unknown playlist %q", id)
	}
	entries, lerr := pl.Entries(ctx)
	if lerr != nil {
		return nil, serverError("playlist %q: %v", id, lerr)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (h *Hub) playlistAdd(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	pl, ok := h.playlist(id)
	if !ok {
		return nil, serverError("unknown playlist %q", id)
	}
	entry, aerr := pl.Add(ctx, args["name"].(string), args["path"].(string))
	if aerr != nil {
		return nil, serverError("playlist %q: %v", id, aerr)
	}
	h.notifier.Publish(Event{Kind: EventPlaylistChanged, Source: id})
	return entry, nil
}

func (h *Hub) playlistPlay(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	pl, ok := h.playlist(id)
	if !ok {
		return nil, serverError("unknown playlist %q", id)
	}
	if perr := pl.Play(ctx, args["entry"].(string)); perr != nil {
		return nil, serverError("playlist %q: %v", id, perr)
	}
	h.notifier.Publish(Event{Kind: EventPlaylistChanged, Source: id})
	return map[string]any{"done": true}, nil
}

func (h *Hub) playlistRemove(ctx context.Context, method string, schema jsonrpc.Schema, params json.RawMessage, _ any) (any, *jsonrpc.Error) {
	args, err := schema.Object(params)
	if err != nil {
		return nil, err
	}
	id := args["id"].(string)
	pl, ok := h.playlist(id)
	if !ok {
		return nil, serverError("unknown playlist %q", id)
	}
	if rerr := pl.Remove(ctx, args["entry"].(string)); rerr != nil {
		return nil, serverError("playlist %q: %v", id, rerr)
	}
	h.notifier.Publish(Event{Kind: EventPlaylistChanged, Source: id})
	return map[string]any{"done": true}, nil
}
