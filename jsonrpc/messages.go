package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only supported JSON-RPC protocol version.
const Version = "2.0"

// Request is the wire shape of a single JSON-RPC call. A request whose ID is
// absent is a notification and never produces a response.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             RequestID       `json:"id,omitzero"`
}

// Response is the wire shape of a single JSON-RPC response. Exactly one of
// Result and Error is set. The ID field is always emitted: it echoes the
// request id, or is a literal null when no id could be identified.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             RequestID       `json:"id"`
}

// NewResultResponse builds a success envelope from a result value and id.
func NewResultResponse(id RequestID, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: Version, Result: data, ID: id}, nil
}

// NewErrorResponse builds an error envelope from a code, a formatted message
// and an id.
func NewErrorResponse(id RequestID, code ErrorCode, format string, args ...any) *Response {
	return newErrorResponse(id, NewError(code, format, args...))
}

func newErrorResponse(id RequestID, e *Error) *Response {
	return &Response{JSONRPCVersion: Version, Error: e, ID: id}
}
