package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParamType is the declared wire type of a schema parameter. Integer and
// double are distinct: a JSON number is an integer when its literal has no
// fraction or exponent part, a double otherwise, and no coercion happens in
// either direction.
type ParamType string

const (
	TypeBoolean ParamType = "boolean"
	TypeInteger ParamType = "integer"
	TypeDouble  ParamType = "double"
	TypeString  ParamType = "string"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

func (t ParamType) valid() bool {
	switch t {
	case TypeBoolean, TypeInteger, TypeDouble, TypeString, TypeObject, TypeArray:
		return true
	}
	return false
}

// Param describes one accepted parameter of a method.
type Param struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
}

// UnmarshalJSON applies the schema-text conventions: "required" defaults to
// true when omitted, and "int" / "bool" are accepted as aliases.
func (p *Param) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Required *bool  `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("parameter without a name")
	}
	t := ParamType(raw.Type)
	switch raw.Type {
	case "int":
		t = TypeInteger
	case "bool":
		t = TypeBoolean
	}
	if !t.valid() {
		return fmt.Errorf("parameter %q has unknown type %q", raw.Name, raw.Type)
	}
	p.Name = raw.Name
	p.Type = t
	p.Required = raw.Required == nil || *raw.Required
	return nil
}

// Schema is the ordered parameter schema of a method. Order matters only
// when parameters are supplied positionally.
type Schema []Param

// ParseSchema parses the JSON text form of a parameter schema: an array of
// {"name", "type", "required"} objects.
func ParseSchema(text []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(text, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies that params matches the schema without materializing any
// output.
func (s Schema) Check(params json.RawMessage) *Error {
	return s.walk(params, nil, nil)
}

// Object materializes a keyed mapping of the parameters, one entry per schema
// item present in params. Missing optional parameters are skipped, they do
// not appear as nulls.
func (s Schema) Object(params json.RawMessage) (map[string]any, *Error) {
	obj := make(map[string]any, len(s))
	if err := s.walk(params, obj, nil); err != nil {
		return nil, err
	}
	return obj, nil
}

// Array materializes the parameters as an ordered sequence in schema order.
// The walk stops at the first missing optional parameter: a positional result
// cannot represent gaps, so not-yet-consumed entries are abandoned.
func (s Schema) Array(params json.RawMessage) ([]any, *Error) {
	arr := &arraySink{values: make([]any, 0, len(s))}
	if err := s.walk(params, nil, arr); err != nil {
		return nil, err
	}
	return arr.values, nil
}

type arraySink struct{ values []any }

// walk is the single core pass shared by Check, Object and Array. It stops
// at the first failure.
func (s Schema) walk(params json.RawMessage, obj map[string]any, arr *arraySink) *Error {
	// An empty or absent schema means the method is misconfigured: there is
	// nothing to validate against. This is the caller's bug, not the
	// requester's.
	if len(s) == 0 {
		return errInternal()
	}

	// The absence of any params at all is a request-shape problem.
	if len(params) == 0 {
		if s.requiredCount() == 0 {
			return nil
		}
		return errInvalidRequest()
	}

	var wire any
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return errInvalidRequest()
	}

	switch w := wire.(type) {
	case map[string]any:
		for _, p := range s {
			v, ok := w[p.Name]
			if !ok {
				if p.Required {
					return errInvalidParams()
				}
				// Optional and missing: skip when building an object, stop
				// when building an array.
				if arr != nil {
					return nil
				}
				continue
			}
			if err := consume(p, v, obj, arr); err != nil {
				return err
			}
		}
	case []any:
		for i, p := range s {
			if i >= len(w) {
				if p.Required {
					return errInvalidParams()
				}
				return nil
			}
			if err := consume(p, w[i], obj, arr); err != nil {
				return err
			}
		}
	default:
		return errInvalidRequest()
	}
	return nil
}

func (s Schema) requiredCount() int {
	n := 0
	for _, p := range s {
		if p.Required {
			n++
		}
	}
	return n
}

// consume checks one wire value against one schema entry and appends it to
// whichever sink is materializing, if any.
func consume(p Param, v any, obj map[string]any, arr *arraySink) *Error {
	val, ok := convert(p.Type, v)
	if !ok {
		return errInvalidParams()
	}
	if obj != nil {
		obj[p.Name] = val
	}
	if arr != nil {
		arr.values = append(arr.values, val)
	}
	return nil
}

// convert checks the exact wire type of v against t and returns the
// normalized Go value. Composite values are validated for shape only, never
// recursively: nested validation is the callback's own business.
func convert(t ParamType, v any) (any, bool) {
	switch t {
	case TypeBoolean:
		b, ok := v.(bool)
		return b, ok
	case TypeInteger:
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, false
		}
		return i, true
	case TypeDouble:
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			// Integer literal supplied where a double is declared.
			return nil, false
		}
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeObject:
		o, ok := v.(map[string]any)
		return o, ok
	case TypeArray:
		a, ok := v.([]any)
		return a, ok
	}
	return nil, false
}
