package jsonrpc

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Callback is the handler invoked when a registered method is called. It
// receives the qualified method name, the parameter schema the method was
// registered with, the raw wire params (nil when absent) and the opaque user
// data supplied at registration.
//
// A callback answers with a result value or an error, never both; when a
// buggy callback supplies both, the error wins. A callback that returns
// neither is treated exactly like an unregistered method. Callbacks run
// synchronously, outside every registry lock, and may block; the context is
// the transport's and carries its cancellation.
type Callback func(ctx context.Context, method string, schema Schema, params json.RawMessage, userData any) (any, *Error)

// MethodDef declares one method for bulk registration. Params and Result
// hold the schema's JSON text form; text that fails to parse into the
// expected shape (array for params, object for result) degrades to an absent
// schema for that entry rather than failing the batch.
type MethodDef struct {
	Method   string
	Params   string
	Result   string
	Callback Callback
	UserData any
}

// registration is an immutable published entry. It is only ever removed
// wholesale, never updated in place.
type registration struct {
	schema   Schema
	result   json.RawMessage // documentation only, never enforced
	callback Callback
	userData any
}

// Registry is a concurrently-accessed table of callable methods keyed by
// qualified name ("group.method"). The zero value is ready to use; the
// backing table is created on first registration and torn down when the last
// entry is removed.
type Registry struct {
	mu      sync.Mutex
	methods map[string]*registration
}

// NewRegistry returns an empty method registry.
func NewRegistry() *Registry { return &Registry{} }

// Register installs one method under "group.method". It returns false and
// mutates nothing when the qualified name is already taken or the callback is
// nil. The schema is copied before the table lock is taken so the lock only
// covers the map insert.
func (r *Registry) Register(group, method string, schema Schema, result json.RawMessage, cb Callback, userData any) bool {
	if cb == nil {
		return false
	}
	reg := &registration{
		schema:   slices.Clone(schema),
		result:   slices.Clone(result),
		callback: cb,
		userData: userData,
	}
	name := group + "." + method

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.methods == nil {
		r.methods = make(map[string]*registration)
	}
	if _, exists := r.methods[name]; exists {
		return false
	}
	r.methods[name] = reg
	return true
}

// Unregister removes "group.method" if present; removing a name that was
// never registered is a no-op. In-flight calls that already looked the
// method up keep their own copy of the schema and are unaffected.
func (r *Registry) Unregister(group, method string) {
	name := group + "." + method

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, name)
	if len(r.methods) == 0 {
		r.methods = nil
	}
}

// RegisterMany registers every definition under the same group and returns
// the number of definitions that could not be registered. A duplicate name
// counts as a failure but does not abort the remaining entries. Schema text
// is parsed before any lock is taken.
func (r *Registry) RegisterMany(group string, defs []MethodDef) int {
	failures := 0
	for _, def := range defs {
		schema := parseParamsText(def.Params)
		result := parseResultText(def.Result)
		if !r.Register(group, def.Method, schema, result, def.Callback, def.UserData) {
			failures++
		}
	}
	return failures
}

// UnregisterMany removes every definition's method from the group; missing
// entries are silently ignored.
func (r *Registry) UnregisterMany(group string, defs []MethodDef) {
	for _, def := range defs {
		r.Unregister(group, def.Method)
	}
}

// lookup resolves a qualified name. The returned registration holds its own
// schema copy taken at publish time, so a concurrent Unregister of the same
// name cannot invalidate what the caller is reading.
func (r *Registry) lookup(name string) (*registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.methods[name]
	return reg, ok
}

// parseParamsText parses a params schema from text, yielding nil for empty
// or malformed text and for any root that is not an array.
func parseParamsText(text string) Schema {
	if text == "" {
		return nil
	}
	s, err := ParseSchema([]byte(text))
	if err != nil {
		return nil
	}
	return s
}

// parseResultText keeps a result schema only when it is a JSON object.
func parseResultText(text string) json.RawMessage {
	if text == "" {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil
	}
	return json.RawMessage(text)
}
