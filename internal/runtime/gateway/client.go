package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
	"github.com/drblury/shardwire/transport"
)

// Extension is a target layered on the shards, such as the command
// extension. Extensions are sealed when the client starts.
type Extension interface {
	events.Target
	Seal()
}

// ClientConfig configures NewShardedClient.
type ClientConfig struct {
	Token string
	// ShardCount is a hint; the session reply decides the real count.
	ShardCount  int
	TopicPrefix string
	// IdentifyInterval spaces shard starts.
	IdentifyInterval time.Duration

	// Middlewares are appended after DefaultMiddlewares.
	Middlewares               []MiddlewareRegistration
	DisableDefaultMiddlewares bool
	Hooks                     DispatchHooks
	Metrics                   *telemetry.Metrics

	// TransportCapabilities describes the transport's delivery guarantees.
	TransportCapabilities transport.Capabilities
}

// ShardedClient owns the shards of one negotiated session.
type ShardedClient struct {
	caps    Capabilities
	session Session
	logger  loggingpkg.ServiceLogger
	conf    ClientConfig

	shards []*Shard

	mu         sync.Mutex
	extensions []Extension
	started    bool
	group      *errgroup.Group
	cancel     context.CancelFunc
}

// NewShardedClient negotiates a session requesting exactly caps and builds one
// shard per shard in the session reply. Nothing is started.
func NewShardedClient(ctx context.Context, caps Capabilities, conf ClientConfig, t transport.Transport, remote Remote, logger loggingpkg.ServiceLogger) (*ShardedClient, error) {
	if !caps.Computed() {
		return nil, errspkg.ErrCapabilitiesRequired
	}
	if conf.Token == "" {
		return nil, errspkg.ErrTokenRequired
	}
	if t.Publisher == nil || t.Subscriber == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	logger = loggingpkg.Component(logger, "gateway")

	if remote == nil {
		remote = NewBrokerRemote(t, BrokerRemoteConfig{TopicPrefix: conf.TopicPrefix}, logger)
	}

	tc := conf.TransportCapabilities
	if tc.Name != "" && !tc.SupportsOrdering {
		logger.Info("Transport does not guarantee ordering; dispatches may arrive out of sequence", loggingpkg.LogFields{
			"transport": tc.Name,
		})
	}

	session, err := remote.Negotiate(ctx, Identify{
		Token:      conf.Token,
		Intents:    caps.Intents(),
		ShardCount: conf.ShardCount,
	})
	if err != nil {
		conf.Metrics.Negotiation(negotiationOutcome(err))
		if errors.Is(err, errspkg.ErrNegotiationFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errspkg.ErrNegotiationFailure, err)
	}
	if session.ShardCount <= 0 {
		conf.Metrics.Negotiation("invalid")
		return nil, fmt.Errorf("%w: session %q reported %d shards", errspkg.ErrNegotiationFailure, session.ID, session.ShardCount)
	}
	session.Intents = caps.Intents()
	conf.Metrics.Negotiation("accepted")
	conf.Metrics.Shards(session.ShardCount)

	middlewares := conf.Middlewares
	if !conf.DisableDefaultMiddlewares {
		middlewares = append(DefaultMiddlewares(), conf.Middlewares...)
	}
	hooks := MetricsHooks(conf.Metrics).Merge(conf.Hooks)
	topics := NewTopics(conf.TopicPrefix)

	c := &ShardedClient{
		caps:    caps,
		session: session,
		logger:  logger,
		conf:    conf,
	}
	for id := 0; id < session.ShardCount; id++ {
		c.shards = append(c.shards, newShard(id, session, topics, t.Publisher, t.Subscriber, logger, hooks, middlewares))
	}
	return c, nil
}

func negotiationOutcome(err error) string {
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, ErrIdentifyTimeout):
		return "timeout"
	default:
		return "error"
	}
}

func (c *ShardedClient) Capabilities() Capabilities { return c.caps }

func (c *ShardedClient) Session() Session { return c.session }

// Shards returns the shards in id order.
func (c *ShardedClient) Shards() []*Shard {
	out := make([]*Shard, len(c.shards))
	copy(out, c.shards)
	return out
}

// AddExtension layers ext on the client. Extensions cannot be added once the
// client started.
func (c *ShardedClient) AddExtension(ext Extension) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("%s: %w", ext.TargetID(), errspkg.ErrTargetStarted)
	}
	c.extensions = append(c.extensions, ext)
	return nil
}

// Targets yields every shard in id order, then every extension in the order
// it was added.
func (c *ShardedClient) Targets() []events.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Target, 0, len(c.shards)+len(c.extensions))
	for _, s := range c.shards {
		out = append(out, s)
	}
	for _, e := range c.extensions {
		out = append(out, e)
	}
	return out
}

// Start seals the extensions and starts every shard, spacing them by
// IdentifyInterval. Shards run until ctx is cancelled, one of them fails or
// Close is called.
func (c *ShardedClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errspkg.ErrTargetStarted
	}
	c.started = true
	extensions := c.extensions
	c.mu.Unlock()

	for _, ext := range extensions {
		ext.Seal()
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	c.mu.Lock()
	c.group = group
	c.cancel = cancel
	c.mu.Unlock()

	for i, shard := range c.shards {
		if i > 0 && c.conf.IdentifyInterval > 0 {
			timer := time.NewTimer(c.conf.IdentifyInterval)
			select {
			case <-groupCtx.Done():
				timer.Stop()
				cancel()
				return groupCtx.Err()
			case <-timer.C:
			}
		}
		if err := shard.Start(groupCtx); err != nil {
			cancel()
			return err
		}
		group.Go(shard.Wait)
	}

	c.logger.Info("Gateway client started", loggingpkg.LogFields{
		"session_id": c.session.ID,
		"shards":     len(c.shards),
		"extensions": len(extensions),
		"intents":    c.caps.Intents().String(),
	})
	return nil
}

// Wait blocks until every shard stopped and returns the first failure.
func (c *ShardedClient) Wait() error {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Run starts the client and blocks until it stops.
func (c *ShardedClient) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait()
}

// Close stops every shard.
func (c *ShardedClient) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var errs []error
	for _, s := range c.shards {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.TargetID(), err))
		}
	}
	return errors.Join(errs...)
}
