package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/ids"
	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/metadata"
	"github.com/drblury/shardwire/transport"
)

// Remote negotiates a session with the gateway.
type Remote interface {
	Negotiate(ctx context.Context, id Identify) (Session, error)
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc func(ctx context.Context, id Identify) (Session, error)

func (f RemoteFunc) Negotiate(ctx context.Context, id Identify) (Session, error) {
	return f(ctx, id)
}

// ErrIdentifyTimeout is returned by an attempt that saw no matching reply.
var ErrIdentifyTimeout = errors.New("gateway: no session reply before timeout")

// RejectedError is a rejection reported by the gateway. It is never retried.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "gateway: identify rejected: " + e.Reason
}

// BrokerRemoteConfig tunes BrokerRemote.
type BrokerRemoteConfig struct {
	TopicPrefix string
	// Timeout bounds each identify attempt.
	Timeout time.Duration
	// Retries is the number of attempts after the first.
	Retries int
	// InitialInterval is the first backoff delay between attempts.
	InitialInterval time.Duration
}

const (
	defaultNegotiateTimeout = 10 * time.Second
	defaultInitialInterval  = 500 * time.Millisecond
)

// BrokerRemote negotiates over the transport: it publishes Identify on the
// identify topic and waits for the SessionReply carrying the same nonce on the
// session topic. Timeouts are retried with exponential backoff; rejections
// are not.
type BrokerRemote struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topics     Topics
	conf       BrokerRemoteConfig
	logger     loggingpkg.ServiceLogger
}

// NewBrokerRemote builds a BrokerRemote on t.
func NewBrokerRemote(t transport.Transport, conf BrokerRemoteConfig, logger loggingpkg.ServiceLogger) *BrokerRemote {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	if conf.Timeout <= 0 {
		conf.Timeout = defaultNegotiateTimeout
	}
	if conf.Retries < 0 {
		conf.Retries = 0
	}
	if conf.InitialInterval <= 0 {
		conf.InitialInterval = defaultInitialInterval
	}
	return &BrokerRemote{
		publisher:  t.Publisher,
		subscriber: t.Subscriber,
		topics:     NewTopics(conf.TopicPrefix),
		conf:       conf,
		logger:     loggingpkg.Component(logger, "gateway"),
	}
}

func (r *BrokerRemote) Negotiate(ctx context.Context, id Identify) (Session, error) {
	if r.publisher == nil || r.subscriber == nil {
		return Session{}, errspkg.ErrTransportRequired
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe first: in-memory transports drop messages nobody listens for.
	replies, err := r.subscriber.Subscribe(subCtx, r.topics.Session())
	if err != nil {
		return Session{}, fmt.Errorf("subscribe %s: %w", r.topics.Session(), err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.conf.InitialInterval
	bo.MaxElapsedTime = 0

	attempt := 0
	var session Session
	err = backoff.Retry(func() error {
		attempt++
		id.Nonce = ids.CreateULID()
		s, err := r.attempt(ctx, id, replies)
		if err == nil {
			session = s
			return nil
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return backoff.Permanent(err)
		}
		r.logger.Info("Identify attempt failed", loggingpkg.LogFields{
			"attempt": attempt,
			"nonce":   id.Nonce,
			"error":   err.Error(),
		})
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.conf.Retries)), ctx))
	if err != nil {
		return Session{}, err
	}

	session.Intents = id.Intents
	r.logger.Info("Gateway session negotiated", loggingpkg.LogFields{
		"session_id":  session.ID,
		"shard_count": session.ShardCount,
		"intents":     id.Intents.String(),
		"attempts":    attempt,
	})
	return session, nil
}

func (r *BrokerRemote) attempt(ctx context.Context, id Identify, replies <-chan *message.Message) (Session, error) {
	payload, err := jsoncodec.Marshal(id)
	if err != nil {
		return Session{}, err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata = metadata.ToWatermill(metadata.New(metadata.KeyCorrelationID, id.Nonce))

	if err := r.publisher.Publish(r.topics.Identify(), msg); err != nil {
		return Session{}, fmt.Errorf("publish identify: %w", err)
	}

	timer := time.NewTimer(r.conf.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Session{}, backoff.Permanent(ctx.Err())
		case <-timer.C:
			return Session{}, ErrIdentifyTimeout
		case reply, ok := <-replies:
			if !ok {
				return Session{}, backoff.Permanent(errors.New("gateway: session subscription closed"))
			}
			reply.Ack()

			var sr SessionReply
			if err := jsoncodec.Unmarshal(reply.Payload, &sr); err != nil {
				r.logger.Debug("Ignoring undecodable session reply", loggingpkg.LogFields{"message_uuid": reply.UUID})
				continue
			}
			nonce := sr.Nonce
			if nonce == "" {
				nonce = reply.Metadata.Get(metadata.KeyCorrelationID)
			}
			if nonce != id.Nonce {
				continue
			}
			if sr.Error != "" {
				return Session{}, &RejectedError{Reason: sr.Error}
			}
			return Session{ID: sr.SessionID, ShardCount: sr.ShardCount}, nil
		}
	}
}
