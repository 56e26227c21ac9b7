package gateway

import (
	"context"
	"time"

	"github.com/drblury/shardwire/internal/runtime/events"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
)

// DispatchContext describes one dispatch to hooks.
type DispatchContext struct {
	// ShardID is the shard the dispatch arrived on.
	ShardID int
	// Category is the event category the dispatch decoded to.
	Category events.Category
	// DispatchType is the gateway name, e.g. "MESSAGE_CREATE".
	DispatchType string
	// Sequence is the gateway sequence number of the dispatch.
	Sequence int64
	// MessageUUID is the transport message carrying the dispatch.
	MessageUUID   string
	CorrelationID string
	Context       context.Context
	StartedAt     time.Time
	// Duration is only set in OnDispatchDone and OnDispatchError.
	Duration time.Duration
}

// DispatchHooks observe dispatches on every shard. Nil hooks are skipped.
type DispatchHooks struct {
	OnDispatchStart func(ctx DispatchContext)
	OnDispatchDone  func(ctx DispatchContext)
	// OnDispatchError receives the joined errors of every failing handler.
	OnDispatchError func(ctx DispatchContext, err error)
}

// Merge returns hooks calling h first, then other.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnDispatchStart: chainHooks(h.OnDispatchStart, other.OnDispatchStart),
		OnDispatchDone:  chainHooks(h.OnDispatchDone, other.OnDispatchDone),
		OnDispatchError: chainErrorHooks(h.OnDispatchError, other.OnDispatchError),
	}
}

func chainHooks(a, b func(DispatchContext)) func(DispatchContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(DispatchContext, error)) func(DispatchContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h DispatchHooks) start(ctx DispatchContext) {
	if h.OnDispatchStart != nil {
		h.OnDispatchStart(ctx)
	}
}

func (h DispatchHooks) finish(ctx DispatchContext, err error) {
	if err != nil {
		if h.OnDispatchError != nil {
			h.OnDispatchError(ctx, err)
		}
		return
	}
	if h.OnDispatchDone != nil {
		h.OnDispatchDone(ctx)
	}
}

func (ctx DispatchContext) fields() loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"shard_id":       ctx.ShardID,
		"category":       string(ctx.Category),
		"dispatch":       ctx.DispatchType,
		"sequence":       ctx.Sequence,
		"correlation_id": ctx.CorrelationID,
	}
}

// LoggingHooks logs dispatch completion at trace level and handler failures
// at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	return DispatchHooks{
		OnDispatchDone: func(ctx DispatchContext) {
			fields := ctx.fields()
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Trace("Dispatch handled", fields)
		},
		OnDispatchError: func(ctx DispatchContext, err error) {
			fields := ctx.fields()
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Error("Dispatch handler failed", err, fields)
		},
	}
}

// MetricsHooks records each dispatch on m.
func MetricsHooks(m *telemetry.Metrics) DispatchHooks {
	return DispatchHooks{
		OnDispatchDone: func(ctx DispatchContext) {
			m.Dispatch(string(ctx.Category), ctx.Duration, nil)
		},
		OnDispatchError: func(ctx DispatchContext, err error) {
			m.Dispatch(string(ctx.Category), ctx.Duration, err)
		},
	}
}
