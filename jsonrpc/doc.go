// Package jsonrpc implements the JSON-RPC 2.0 control plane shared by every
// Medley subsystem: a concurrently-mutable method registry, a declarative
// parameter schema validator, a per-call request processor and a
// transport-agnostic top-level dispatcher.
//
// Domain modules register methods under a qualified "group.method" name
// together with an ordered parameter schema; any transport feeds raw request
// text to a Dispatcher and writes back whatever it returns, or nothing when
// it returns nil. Neither side knows anything about the other's semantics.
//
// Batching, notifications (calls without an id, which never produce output)
// and the standard error taxonomy follow the JSON-RPC 2.0 specification
// exactly. No lock is ever held while a registered callback runs, and a
// schema handed to an in-flight call stays valid across a concurrent
// unregistration of the same method.
package jsonrpc
