package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/metadata"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

type shardContextKey struct{}

// ContextWithShard returns ctx carrying s.
func ContextWithShard(ctx context.Context, s *Shard) context.Context {
	return context.WithValue(ctx, shardContextKey{}, s)
}

// ShardFromContext returns the shard a handler is running on.
func ShardFromContext(ctx context.Context) (*Shard, bool) {
	s, ok := ctx.Value(shardContextKey{}).(*Shard)
	return s, ok && s != nil
}

// Shard is one gateway connection. It exposes the gateway event namespace as
// slots; handlers subscribe before Start and are invoked from the shard's
// receive loop, one dispatch at a time.
type Shard struct {
	id      int
	count   int
	session Session
	topics  Topics

	publisher  message.Publisher
	subscriber message.Subscriber
	logger     loggingpkg.ServiceLogger
	wmLogger   watermill.LoggerAdapter

	slots       *events.SlotSet
	hooks       DispatchHooks
	middlewares []MiddlewareRegistration

	router  *message.Router
	started atomic.Bool
	lastSeq atomic.Int64
	done    chan struct{}
	runErr  error
	close   sync.Once
}

func newShard(id int, session Session, topics Topics, pub message.Publisher, sub message.Subscriber, logger loggingpkg.ServiceLogger, hooks DispatchHooks, middlewares []MiddlewareRegistration) *Shard {
	shardLogger := logger.With(loggingpkg.LogFields{"shard_id": id})
	return &Shard{
		id:          id,
		count:       session.ShardCount,
		session:     session,
		topics:      topics,
		publisher:   pub,
		subscriber:  sub,
		logger:      shardLogger,
		wmLogger:    loggingpkg.NewWatermillAdapter(shardLogger),
		slots:       newGatewaySlots(),
		hooks:       hooks,
		middlewares: middlewares,
		done:        make(chan struct{}),
	}
}

func newGatewaySlots() *events.SlotSet {
	return events.NewSlotSet(
		events.NewSlot[*events.ReadyEvent](events.Ready),
		events.NewSlot[*events.GuildCreateEvent](events.GuildCreated),
		events.NewSlot[*events.MessageCreateEvent](events.MessageCreated),
		events.NewSlot[*events.MessageUpdateEvent](events.MessageUpdated),
		events.NewSlot[*events.MessageDeleteEvent](events.MessageDeleted),
		events.NewSlot[*events.MemberAddEvent](events.MemberAdded),
		events.NewSlot[*events.MemberRemoveEvent](events.MemberRemoved),
		events.NewSlot[*events.ReactionAddEvent](events.ReactionAdded),
	)
}

// ShardTargetID is the target id of shard id.
func ShardTargetID(id int) string {
	return "shard-" + strconv.Itoa(id)
}

func (s *Shard) TargetID() string { return ShardTargetID(s.id) }

func (s *Shard) ID() int { return s.id }

// Count is the total number of shards in the session.
func (s *Shard) Count() int { return s.count }

func (s *Shard) Session() Session { return s.session }

func (s *Shard) Categories() []events.Category { return s.slots.Categories() }

func (s *Shard) Slot(c events.Category) (events.Slot, bool) { return s.slots.Slot(c) }

// Started reports whether Start has been called.
func (s *Shard) Started() bool { return s.started.Load() }

// LastSequence is the sequence number of the last dispatch handled.
func (s *Shard) LastSequence() int64 { return s.lastSeq.Load() }

// Start seals the shard's slots and starts its receive loop. It returns once
// the loop is consuming the shard topic.
func (s *Shard) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", s.TargetID(), errspkg.ErrTargetStarted)
	}
	s.slots.Seal()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, s.wmLogger)
	if err != nil {
		return err
	}
	s.router = router

	for _, reg := range s.middlewares {
		if err := s.registerMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s on %s: %w", name, s.TargetID(), err)
		}
	}

	router.AddNoPublisherHandler(s.TargetID(), s.topics.Shard(s.id), s.subscriber, s.handle)

	go func() {
		defer close(s.done)
		s.runErr = routerRun(router, ctx)
	}()

	select {
	case <-router.Running():
		s.logger.Info("Shard started", loggingpkg.LogFields{
			"topic":      s.topics.Shard(s.id),
			"session_id": s.session.ID,
		})
		return nil
	case <-s.done:
		if s.runErr != nil {
			return fmt.Errorf("start %s: %w", s.TargetID(), s.runErr)
		}
		return fmt.Errorf("start %s: router stopped", s.TargetID())
	}
}

// Wait blocks until the receive loop stops.
func (s *Shard) Wait() error {
	if !s.started.Load() {
		return nil
	}
	<-s.done
	return s.runErr
}

// Close stops the receive loop.
func (s *Shard) Close() error {
	var err error
	s.close.Do(func() {
		if s.router != nil {
			err = s.router.Close()
		}
	})
	return err
}

func (s *Shard) handle(msg *message.Message) error {
	var env Envelope
	if err := jsoncodec.Unmarshal(msg.Payload, &env); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if env.Op != OpDispatch {
		s.logger.Trace("Ignoring frame", loggingpkg.LogFields{"op": env.Op})
		return nil
	}

	payload, err := events.Decode(env.Type, env.Data)
	if err != nil {
		var unknown *events.UnknownDispatchError
		if errors.As(err, &unknown) {
			s.logger.Debug("Ignoring unknown dispatch", loggingpkg.LogFields{"dispatch": env.Type})
			return nil
		}
		return err
	}
	if env.Seq > 0 {
		s.lastSeq.Store(env.Seq)
	}

	ctx := ContextWithShard(msg.Context(), s)
	dc := DispatchContext{
		ShardID:       s.id,
		Category:      payload.Category(),
		DispatchType:  env.Type,
		Sequence:      env.Seq,
		MessageUUID:   msg.UUID,
		CorrelationID: msg.Metadata.Get(metadata.KeyCorrelationID),
		Context:       ctx,
		StartedAt:     time.Now(),
	}
	s.hooks.start(dc)

	_, err = s.slots.Dispatch(ctx, payload)

	dc.Duration = time.Since(dc.StartedAt)
	s.hooks.finish(dc, err)
	return err
}

// CreateMessage asks the gateway proxy to post content to channelID.
func (s *Shard) CreateMessage(ctx context.Context, channelID, content string) error {
	return s.publishREST(ctx, CreateMessage{ChannelID: channelID, Content: content, ShardID: s.id})
}

// Reply posts content to the channel of msg, referencing it.
func (s *Shard) Reply(ctx context.Context, msg events.Message, content string) error {
	return s.publishREST(ctx, CreateMessage{
		ChannelID: msg.ChannelID,
		Content:   content,
		ReplyTo:   msg.ID,
		ShardID:   s.id,
	})
}

func (s *Shard) publishREST(ctx context.Context, req CreateMessage) error {
	payload, err := jsoncodec.Marshal(req)
	if err != nil {
		return err
	}
	out := message.NewMessage(watermill.NewUUID(), payload)
	out.Metadata = metadata.ToWatermill(metadata.New().WithInt(metadata.KeyShardID, s.id))
	out.SetContext(ctx)
	if err := s.publisher.Publish(s.topics.REST(), out); err != nil {
		return fmt.Errorf("%s: publish %s: %w", s.TargetID(), s.topics.REST(), err)
	}
	return nil
}
