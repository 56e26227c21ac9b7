package gateway

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/drblury/shardwire/internal/runtime/ids"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/metadata"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
)

// MiddlewareBuilder constructs a handler middleware for a shard router.
type MiddlewareBuilder func(*Shard) (message.HandlerMiddleware, error)

// MiddlewareRegistration describes one middleware on every shard router.
// Exactly one of Middleware or Builder is used; a Builder returning nil
// skips the middleware.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the chain every shard router gets, outermost
// first.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		AckMiddleware(),
		RecovererMiddleware(),
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(),
		TracerMiddleware(),
	}
}

// AckMiddleware acknowledges every dispatch, logging handler failures.
// Gateway events are delivered once; a nack would replay the dispatch to
// handlers that already ran.
func AckMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "ack",
		Builder: func(s *Shard) (message.HandlerMiddleware, error) {
			return s.ackMiddleware(), nil
		},
	}
}

func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// CorrelationIDMiddleware ensures each dispatch carries a correlation id.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "correlation_id",
		Middleware: correlationIDMiddleware,
	}
}

// LogMessagesMiddleware logs the raw frame of every dispatch at trace level.
func LogMessagesMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Shard) (message.HandlerMiddleware, error) {
			return s.logMessagesMiddleware(), nil
		},
	}
}

// TracerMiddleware wraps each dispatch in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(s *Shard) (message.HandlerMiddleware, error) {
			return s.tracerMiddleware(), nil
		},
	}
}

// MetricsMiddleware adds watermill's Prometheus router metrics to each shard
// router, registered with registerer.
func MetricsMiddleware(registerer prometheus.Registerer) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Shard) (message.HandlerMiddleware, error) {
			if s.router == nil {
				return nil, errors.New("router is not initialised")
			}
			return telemetry.RouterMiddleware(registerer, "router", s.router), nil
		},
	}
}

func (s *Shard) registerMiddleware(reg MiddlewareRegistration) error {
	var mw message.HandlerMiddleware
	switch {
	case reg.Middleware != nil:
		mw = reg.Middleware
	case reg.Builder != nil:
		var err error
		mw, err = reg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}
	if mw == nil {
		return nil
	}
	s.router.AddMiddleware(mw)
	return nil
}

func (s *Shard) ackMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			msgs, err := h(msg)
			if err != nil {
				s.logger.Error("Dispatch failed", err, loggingpkg.LogFields{
					"message_uuid":   msg.UUID,
					"correlation_id": msg.Metadata.Get(metadata.KeyCorrelationID),
				})
			}
			return msgs, nil
		}
	}
}

func correlationIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if msg.Metadata.Get(metadata.KeyCorrelationID) == "" {
			msg.Metadata.Set(metadata.KeyCorrelationID, ids.CreateULID())
		}
		return h(msg)
	}
}

func (s *Shard) logMessagesMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			s.logger.Trace("Received frame", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"payload":      string(msg.Payload),
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}

func (s *Shard) tracerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx, span := telemetry.Tracer().Start(msg.Context(), "Dispatch")
			defer span.End()
			msg.SetContext(ctx)

			span.SetAttributes(
				attribute.Int("shard.id", s.id),
				attribute.String("message.uuid", msg.UUID),
				attribute.String("correlation_id", msg.Metadata.Get(metadata.KeyCorrelationID)),
			)
			msgs, err := h(msg)
			if err != nil {
				span.RecordError(err)
			}
			return msgs, err
		}
	}
}
