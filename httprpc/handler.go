// Package httprpc is the HTTP transport of the control plane: JSON-RPC
// calls over POST /rpc and a server-sent event stream of hub events over
// GET /events.
package httprpc

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/medleyhub/medley/hub"
	"github.com/medleyhub/medley/internal/logctx"
	"github.com/medleyhub/medley/jsonrpc"
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

// maxBodyBytes bounds the request body; one JSON-RPC payload never
// legitimately approaches this.
const maxBodyBytes = 4 << 20

// writeJSONError writes a transport-level error envelope. These are HTTP
// failures, not JSON-RPC errors: the payload never reached the dispatcher.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Handler serves the control plane over HTTP.
type Handler struct {
	mux      *http.ServeMux
	dispatch *jsonrpc.Dispatcher
	events   *hub.Notifier
	log      *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the structured logger used for request diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// New builds the transport over a dispatcher and the hub's event notifier.
// events may be nil, in which case GET /events serves 404.
func New(dispatch *jsonrpc.Dispatcher, events *hub.Notifier, opts ...Option) *Handler {
	h := &Handler{
		mux:      http.NewServeMux(),
		dispatch: dispatch,
		events:   events,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mux.HandleFunc("POST /rpc", h.handlePostRPC)
	if events != nil {
		h.mux.HandleFunc("GET /events", h.handleGetEvents)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handlePostRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.log.InfoContext(ctx, "http.rpc.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "cannot read request body")
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}
	if len(body) > maxBodyBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		h.log.WarnContext(ctx, "body.too_large")
		return
	}

	// The dispatcher owns all JSON-RPC semantics; malformed payloads come
	// back as error envelopes, notifications come back as nil.
	res := h.dispatch.Handle(ctx, body)
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		h.log.InfoContext(ctx, "http.rpc.notification", slog.Duration("dur", time.Since(start)))
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res); err != nil {
		h.log.WarnContext(ctx, "http.rpc.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "http.rpc.ok", slog.Duration("dur", time.Since(start)))
}

func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "accept must include text/event-stream")
		h.log.WarnContext(ctx, "accept.unsupported")
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "flusher.missing")
		return
	}

	events, cancel := h.events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	h.log.InfoContext(ctx, "sse.stream.start")

	for {
		select {
		case <-ctx.Done():
			h.log.InfoContext(ctx, "sse.stream.end")
			return
		case ev, open := <-events:
			if !open {
				h.log.InfoContext(ctx, "sse.stream.closed")
				return
			}
			if err := writeSSEEvent(w, f, ev); err != nil {
				h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				return
			}
		}
	}
}

// writeSSEEvent writes one hub event as an SSE frame: the event field is the
// hub event kind, the data field its JSON encoding.
func writeSSEEvent(w io.Writer, f http.Flusher, ev hub.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Kind); err != nil {
		return fmt.Errorf("failed to write SSE event field: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write SSE data field: %w", err)
	}
	f.Flush()
	return nil
}
