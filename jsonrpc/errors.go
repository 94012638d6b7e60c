package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603
	// ErrorCodeServerError is the first code of the range reserved for
	// application-defined server errors. Domain callbacks may use it directly
	// or pick codes outside the -32768..-32000 reserved range.
	ErrorCodeServerError ErrorCode = -32000
)

// Error is a JSON-RPC error object. It doubles as a Go error so domain
// callbacks can return it through regular error plumbing.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// NewError builds an error object with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	if len(args) == 0 {
		return &Error{Code: code, Message: format}
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Canonical messages for the protocol-mandated codes.
func errParse() *Error          { return NewError(ErrorCodeParseError, "Parse error") }
func errInvalidRequest() *Error { return NewError(ErrorCodeInvalidRequest, "Invalid request") }
func errMethodNotFound() *Error { return NewError(ErrorCodeMethodNotFound, "Method not found") }
func errInvalidParams() *Error  { return NewError(ErrorCodeInvalidParams, "Invalid params") }
func errInternal() *Error       { return NewError(ErrorCodeInternalError, "Internal error") }
