package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/schema"
)

type contextKey int

const targetKey contextKey = iota

// WithStream annotates the logger with the stream id if present.
func WithStream(log pslog.Logger, stream schema.StreamID) pslog.Logger {
	if stream != "" {
		log = log.With("stream", stream)
	}
	return log
}

// WithTarget annotates the logger with a deep-link target when available.
func WithTarget(log pslog.Logger, target schema.EntryID) pslog.Logger {
	if target != "" {
		log = log.With("target", target)
	}
	return log
}

// WithRequest annotates the logger with the fields of a fetch leg.
func WithRequest(log pslog.Logger, req schema.FetchRequest) pslog.Logger {
	log = WithStream(log, req.Stream).With("direction", req.Direction, "generation", req.Generation)
	if req.BoundaryID != "" {
		log = log.With("boundary", req.BoundaryID)
	}
	return log
}

// FromContext returns the context logger annotated with the deep-link
// target stored on ctx, if any.
func FromContext(ctx context.Context) pslog.Logger {
	log := pslog.Ctx(ctx)
	if target, ok := ctx.Value(targetKey).(schema.EntryID); ok {
		log = WithTarget(log, target)
	}
	return log
}

// ContextWithTarget stores the deep-link target marker on the context.
func ContextWithTarget(ctx context.Context, target schema.EntryID) context.Context {
	if ctx == nil || target == "" {
		return ctx
	}
	return context.WithValue(ctx, targetKey, target)
}

// ContextWithLogger attaches log to ctx, keeping any target marker.
func ContextWithLogger(ctx context.Context, log pslog.Logger) context.Context {
	return pslog.ContextWithLogger(ctx, log)
}
