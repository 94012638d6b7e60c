package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func constCallback(result any) Callback {
	return func(ctx context.Context, method string, schema Schema, params json.RawMessage, userData any) (any, *Error) {
		return result, nil
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Run("duplicate name fails without mutation", func(t *testing.T) {
		reg := NewRegistry()
		if !reg.Register("file", "get_list", nil, nil, constCallback("first"), nil) {
			t.Fatalf("first registration should succeed")
		}
		if reg.Register("file", "get_list", nil, nil, constCallback("second"), nil) {
			t.Fatalf("second registration of the same name should fail")
		}

		// The original registration must remain callable.
		entry, ok := reg.lookup("file.get_list")
		if !ok {
			t.Fatalf("original method vanished")
		}
		result, _ := entry.callback(context.Background(), "file.get_list", nil, nil, nil)
		if want, got := "first", result; want != got {
			t.Errorf("want %q, got %v", want, got)
		}
	})

	t.Run("nil callback rejected", func(t *testing.T) {
		reg := NewRegistry()
		if reg.Register("file", "get_list", nil, nil, nil, nil) {
			t.Errorf("registration without a callback should fail")
		}
	})

	t.Run("user data passed through unchanged", func(t *testing.T) {
		reg := NewRegistry()
		type ctxData struct{ id int }
		want := &ctxData{id: 42}
		reg.Register("file", "get_list", nil, nil, constCallback(nil), want)
		entry, _ := reg.lookup("file.get_list")
		if entry.userData != want {
			t.Errorf("user data was not passed through")
		}
	})
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register("file", "get_list", nil, nil, constCallback(nil), nil)

	reg.Unregister("file", "get_list")
	if _, ok := reg.lookup("file.get_list"); ok {
		t.Errorf("method still resolvable after unregister")
	}

	// Unregistering a nonexistent name is a no-op, including on the now
	// torn-down table.
	reg.Unregister("file", "get_list")
	reg.Unregister("radio", "never_registered")

	if !reg.Register("file", "get_list", nil, nil, constCallback(nil), nil) {
		t.Errorf("name should be reusable after unregister")
	}
}

func TestRegistryRegisterMany(t *testing.T) {
	t.Run("failure count and independence", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("file", "taken", nil, nil, constCallback(nil), nil)

		failures := reg.RegisterMany("file", []MethodDef{
			{Method: "taken", Callback: constCallback(nil)},    // duplicate
			{Method: "get_list", Callback: constCallback(nil)}, // fine
			{Method: "get_info", Callback: constCallback(nil)}, // fine
		})
		if want, got := 1, failures; want != got {
			t.Errorf("want %d failures, got %d", want, got)
		}
		if _, ok := reg.lookup("file.get_list"); !ok {
			t.Errorf("a duplicate must not abort the remaining entries")
		}
		if _, ok := reg.lookup("file.get_info"); !ok {
			t.Errorf("a duplicate must not abort the remaining entries")
		}
	})

	t.Run("malformed schema text degrades to absent schema", func(t *testing.T) {
		reg := NewRegistry()
		failures := reg.RegisterMany("file", []MethodDef{
			{Method: "bad_params", Params: `{"not":"an array"}`, Callback: constCallback(nil)},
			{Method: "bad_json", Params: `[{"name":`, Callback: constCallback(nil)},
			{Method: "bad_result", Result: `["not an object"]`, Callback: constCallback(nil)},
		})
		if failures != 0 {
			t.Fatalf("schema problems are not registration failures, got %d", failures)
		}
		for _, name := range []string{"file.bad_params", "file.bad_json", "file.bad_result"} {
			entry, ok := reg.lookup(name)
			if !ok {
				t.Fatalf("%s not registered", name)
			}
			if entry.schema != nil {
				t.Errorf("%s: malformed params text should yield no schema", name)
			}
		}
	})

	t.Run("valid schema text is parsed", func(t *testing.T) {
		reg := NewRegistry()
		reg.RegisterMany("file", []MethodDef{{
			Method:   "get_list",
			Params:   `[{"name":"path","type":"string"}]`,
			Result:   `{"type":"array"}`,
			Callback: constCallback(nil),
		}})
		entry, _ := reg.lookup("file.get_list")
		if want, got := 1, len(entry.schema); want != got {
			t.Fatalf("want %d schema entries, got %d", want, got)
		}
		if want, got := "path", entry.schema[0].Name; want != got {
			t.Errorf("want schema entry %q, got %q", want, got)
		}
	})
}

func TestRegistryUnregisterMany(t *testing.T) {
	reg := NewRegistry()
	defs := []MethodDef{
		{Method: "get_list", Callback: constCallback(nil)},
		{Method: "get_info", Callback: constCallback(nil)},
	}
	reg.RegisterMany("file", defs)

	// Include an entry that was never registered: it must be ignored.
	reg.UnregisterMany("file", append(defs, MethodDef{Method: "missing"}))

	if _, ok := reg.lookup("file.get_list"); ok {
		t.Errorf("file.get_list should be gone")
	}
	if _, ok := reg.lookup("file.get_info"); ok {
		t.Errorf("file.get_info should be gone")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	// Registrations, unregistrations and lookups race freely; the schema a
	// lookup returned must stay intact across a concurrent unregister.
	reg := NewRegistry()
	schema := Schema{{Name: "path", Type: TypeString, Required: true}}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := fmt.Sprintf("m%d", i%10)
				reg.Register("file", name, schema, nil, constCallback(nil), nil)
				if entry, ok := reg.lookup("file." + name); ok {
					if len(entry.schema) != 1 || entry.schema[0].Name != "path" {
						t.Errorf("schema corrupted under concurrent access")
						return
					}
				}
				reg.Unregister("file", name)
			}
		}()
	}
	wg.Wait()
}
