package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type idKind uint8

const (
	idAbsent idKind = iota
	idNull
	idInteger
	idString
)

// RequestID is a JSON-RPC request identifier. The kind (absent, null,
// integer or string) is tracked explicitly so a response always echoes the
// exact representation the request used: an integer id of 0 or a negative
// integer id round-trips as an integer, never as a string.
//
// The zero value is the absent id, which marks a request as a notification.
type RequestID struct {
	kind idKind
	num  int64
	str  string
}

// IntID returns an integer request id.
func IntID(v int64) RequestID { return RequestID{kind: idInteger, num: v} }

// StringID returns a string request id.
func StringID(s string) RequestID { return RequestID{kind: idString, str: s} }

// NullID returns an explicit null id, used when no id could be identified.
func NullID() RequestID { return RequestID{kind: idNull} }

// IsAbsent reports whether the id was missing from the request entirely.
func (id RequestID) IsAbsent() bool { return id.kind == idAbsent }

// IsZero makes the absent id compatible with encoding/json's omitzero.
func (id RequestID) IsZero() bool { return id.kind == idAbsent }

// String renders the id for logging.
func (id RequestID) String() string {
	switch id.kind {
	case idInteger:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return id.str
	default:
		return ""
	}
}

// MarshalJSON renders an absent or null id as a JSON null so error envelopes
// built with no identifiable id carry a literal null id.
func (id RequestID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idInteger:
		return strconv.AppendInt(nil, id.num, 10), nil
	case idString:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an integer or null. Fractional numbers and
// any other JSON value are rejected; the surrounding request is then invalid.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = RequestID{kind: idNull}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RequestID{kind: idString, str: s}
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be a string or an integer, got %s", data)
	}
	*id = RequestID{kind: idInteger, num: n}
	return nil
}
