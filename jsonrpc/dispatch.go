package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/medleyhub/medley/internal/logctx"
)

// Dispatcher is the entry point of the control plane. It takes raw wire text
// from any transport, drives one request processor per call, and hands back
// the serialized response text, or nil when the protocol mandates silence
// (notifications, all-notification batches).
type Dispatcher struct {
	reg *Registry
	log *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the structured logger used for dispatch diagnostics.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher builds a dispatcher over the given method registry.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle parses one wire payload, processes it and returns the serialized
// response. A nil return means "send nothing": the transport must not write
// an empty payload in that case.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) []byte {
	res := d.dispatch(ctx, data)
	if res == nil {
		return nil
	}
	out, err := json.Marshal(res)
	if err != nil {
		// The response was built from values we control, so this is the
		// dispatcher's own failure, never the caller's.
		d.log.ErrorContext(ctx, "failed to serialize response", slog.String("err", err.Error()))
		out, _ = json.Marshal(newErrorResponse(NullID(), errInternal()))
	}
	return out
}

// dispatch detects the payload shape and produces the response value: a
// *Response for a single call, a []*Response for a batch, or nil for
// notifications.
func (d *Dispatcher) dispatch(ctx context.Context, data []byte) any {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return newErrorResponse(NullID(), errParse())
	}

	switch data[0] {
	case '{':
		res := d.processCall(ctx, data)
		if res == nil {
			return nil
		}
		return res
	case '[':
		return d.processBatch(ctx, data)
	default:
		// Valid JSON, but a scalar or null at the root.
		return newErrorResponse(NullID(), errInvalidRequest())
	}
}

// processBatch runs every batch element independently. Elements are
// processed concurrently, but responses land in an index-addressed slice so
// output order always matches input order. One malformed element produces
// its own error envelope and never aborts its siblings.
func (d *Dispatcher) processBatch(ctx context.Context, data []byte) any {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return newErrorResponse(NullID(), errParse())
	}
	if len(elems) == 0 {
		return newErrorResponse(NullID(), errInvalidRequest())
	}

	results := make([]*Response, len(elems))
	var wg sync.WaitGroup
	for i, elem := range elems {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.processCall(ctx, elem)
		}()
	}
	wg.Wait()

	responses := make([]*Response, 0, len(elems))
	for _, res := range results {
		if res != nil {
			responses = append(responses, res)
		}
	}
	if len(responses) == 0 {
		// Every element was a notification: no output at all, not [].
		return nil
	}
	return responses
}

// envelope captures the call fields without committing to their types, so a
// shape violation surfaces as Invalid Request rather than a parse failure.
type envelope struct {
	JSONRPCVersion json.RawMessage `json:"jsonrpc"`
	Method         json.RawMessage `json:"method"`
	Params         json.RawMessage `json:"params"`
	ID             json.RawMessage `json:"id"`
}

// processCall runs the single-call state machine and returns the response,
// or nil when the call is a notification.
func (d *Dispatcher) processCall(ctx context.Context, data []byte) *Response {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Syntactically valid JSON that is not an object.
		return newErrorResponse(NullID(), errInvalidRequest())
	}

	// Identify the id first so envelope errors can echo it. An id of an
	// unidentifiable kind leaves it null.
	var id RequestID
	if env.ID != nil {
		if err := id.UnmarshalJSON(env.ID); err != nil {
			return newErrorResponse(NullID(), errInvalidRequest())
		}
	}

	var version string
	if env.JSONRPCVersion == nil ||
		json.Unmarshal(env.JSONRPCVersion, &version) != nil ||
		version != Version {
		return newErrorResponse(id, errInvalidRequest())
	}

	var method string
	if env.Method == nil || json.Unmarshal(env.Method, &method) != nil {
		return newErrorResponse(id, errInvalidRequest())
	}

	if env.Params != nil {
		if p := bytes.TrimSpace(env.Params); len(p) == 0 || (p[0] != '{' && p[0] != '[') {
			return newErrorResponse(id, errInvalidRequest())
		}
	}

	// Look the method up before examining the id: a notification for an
	// unknown method must still do nothing at all.
	reg, found := d.reg.lookup(method)

	ctx = logctx.WithRPCData(ctx, &logctx.RPCData{Method: method, ID: id.String()})

	if id.IsAbsent() {
		if found {
			// Fire and forget; whatever the callback produces is discarded.
			_, _ = reg.callback(ctx, method, reg.schema, env.Params, reg.userData)
		}
		return nil
	}

	if !found {
		return newErrorResponse(id, errMethodNotFound())
	}

	result, cerr := reg.callback(ctx, method, reg.schema, env.Params, reg.userData)
	if cerr != nil {
		// Error wins if a buggy callback supplied both.
		return newErrorResponse(id, cerr)
	}
	if result == nil {
		// A handler that declines to answer is indistinguishable from an
		// absent one.
		return newErrorResponse(id, errMethodNotFound())
	}

	res, err := NewResultResponse(id, result)
	if err != nil {
		d.log.ErrorContext(ctx, "failed to marshal method result",
			slog.String("method", method), slog.String("err", err.Error()))
		return newErrorResponse(id, errInternal())
	}
	return res
}
