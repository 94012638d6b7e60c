// Package logctx enriches slog records with request-scoped attributes
// carried in the context, so every component logs with the same correlation
// fields without threading them explicitly.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends any request or RPC
// attributes found in the record's context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if rpc, ok := ctx.Value(rpcDataKey{}).(*RPCData); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", rpc.Method),
			slog.String("id", rpc.ID),
		))
	}

	if md, ok := ctx.Value(moduleDataKey{}).(*ModuleData); ok {
		r.AddAttrs(slog.Group("module",
			slog.String("id", md.ModuleID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

// RequestData identifies one inbound transport request.
type RequestData struct {
	RequestID  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type rpcDataKey struct{}

// RPCData identifies one JSON-RPC call being dispatched.
type RPCData struct {
	Method string
	ID     string
}

func WithRPCData(ctx context.Context, data *RPCData) context.Context {
	return context.WithValue(ctx, rpcDataKey{}, data)
}

type moduleDataKey struct{}

// ModuleData identifies the domain module handling a call.
type ModuleData struct {
	ModuleID string
}

func WithModuleData(ctx context.Context, data *ModuleData) context.Context {
	return context.WithValue(ctx, moduleDataKey{}, data)
}
