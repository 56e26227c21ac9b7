// Package gatewaytest provides an in-process gateway proxy for tests. It
// answers identify requests, relays dispatches onto shard topics and records
// outbound REST calls, all over a real watermill transport.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/shardwire/internal/runtime/gateway"
	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
	"github.com/drblury/shardwire/internal/runtime/metadata"
	"github.com/drblury/shardwire/transport"
)

// Behaviour decides how the fake answers one identify request. Returning
// Silent leaves the request unanswered.
type Behaviour func(id gateway.Identify, attempt int) gateway.SessionReply

// Silent marks a reply that is never sent.
const Silent = "\x00silent"

// Accept answers every identify with a session of shards shards.
func Accept(shards int) Behaviour {
	return func(id gateway.Identify, attempt int) gateway.SessionReply {
		return gateway.SessionReply{SessionID: fmt.Sprintf("session-%d", attempt), ShardCount: shards}
	}
}

// Reject answers every identify with reason.
func Reject(reason string) Behaviour {
	return func(gateway.Identify, int) gateway.SessionReply {
		return gateway.SessionReply{Error: reason}
	}
}

// AcceptAfter ignores the first n identify requests, then accepts.
func AcceptAfter(n, shards int) Behaviour {
	return func(id gateway.Identify, attempt int) gateway.SessionReply {
		if attempt <= n {
			return gateway.SessionReply{Error: Silent}
		}
		return Accept(shards)(id, attempt)
	}
}

// NewTransport returns an in-memory transport made of two buses. Shard
// topics ride a bus whose Publish blocks until the subscriber acknowledged,
// so frames are handled in publish order and a Dispatch call returns after
// the handlers ran. Identify, session and REST traffic ride a second,
// non-blocking bus, so a handler may publish a reply while its frame is still
// being delivered.
func NewTransport() transport.Transport {
	bus := &splitBus{
		dispatch: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NopLogger{}),
		control: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{}),
	}
	return transport.Transport{Publisher: bus, Subscriber: bus}
}

type splitBus struct {
	dispatch *gochannel.GoChannel
	control  *gochannel.GoChannel
}

func (b *splitBus) route(topic string) *gochannel.GoChannel {
	if strings.Contains(topic, ".shard.") {
		return b.dispatch
	}
	return b.control
}

func (b *splitBus) Publish(topic string, msgs ...*message.Message) error {
	return b.route(topic).Publish(topic, msgs...)
}

func (b *splitBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.route(topic).Subscribe(ctx, topic)
}

// Close closes both buses. It is safe to call more than once.
func (b *splitBus) Close() error {
	return errors.Join(b.dispatch.Close(), b.control.Close())
}

// Gateway is the fake proxy.
type Gateway struct {
	t         transport.Transport
	topics    gateway.Topics
	behaviour Behaviour

	mu         sync.Mutex
	identifies []gateway.Identify
	rest       []gateway.CreateMessage
	seq        int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start subscribes the fake to the identify and REST topics of prefix.
func Start(ctx context.Context, t transport.Transport, prefix string, behaviour Behaviour) (*Gateway, error) {
	ctx, cancel := context.WithCancel(ctx)
	g := &Gateway{
		t:         t,
		topics:    gateway.NewTopics(prefix),
		behaviour: behaviour,
		cancel:    cancel,
	}

	identify, err := t.Subscriber.Subscribe(ctx, g.topics.Identify())
	if err != nil {
		cancel()
		return nil, err
	}
	rest, err := t.Subscriber.Subscribe(ctx, g.topics.REST())
	if err != nil {
		cancel()
		return nil, err
	}

	g.wg.Add(2)
	go g.serveIdentify(identify)
	go g.serveREST(rest)
	return g, nil
}

// Stop ends the fake's subscriptions.
func (g *Gateway) Stop() {
	g.cancel()
	g.wg.Wait()
}

func (g *Gateway) serveIdentify(msgs <-chan *message.Message) {
	defer g.wg.Done()
	for msg := range msgs {
		msg.Ack()
		var id gateway.Identify
		if err := jsoncodec.Unmarshal(msg.Payload, &id); err != nil {
			continue
		}

		g.mu.Lock()
		g.identifies = append(g.identifies, id)
		attempt := len(g.identifies)
		g.mu.Unlock()

		reply := g.behaviour(id, attempt)
		if reply.Error == Silent {
			continue
		}
		reply.Nonce = id.Nonce
		payload, err := jsoncodec.Marshal(reply)
		if err != nil {
			continue
		}
		out := message.NewMessage(watermill.NewUUID(), payload)
		out.Metadata.Set(metadata.KeyCorrelationID, msg.Metadata.Get(metadata.KeyCorrelationID))
		_ = g.t.Publisher.Publish(g.topics.Session(), out)
	}
}

func (g *Gateway) serveREST(msgs <-chan *message.Message) {
	defer g.wg.Done()
	for msg := range msgs {
		msg.Ack()
		var req gateway.CreateMessage
		if err := jsoncodec.Unmarshal(msg.Payload, &req); err != nil {
			continue
		}
		g.mu.Lock()
		g.rest = append(g.rest, req)
		g.mu.Unlock()
	}
}

// Dispatch relays a dispatch of type name carrying data to shard.
func (g *Gateway) Dispatch(shard int, name string, data any) error {
	raw, err := jsoncodec.Marshal(data)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	return g.Frame(shard, gateway.Envelope{Op: gateway.OpDispatch, Type: name, Seq: seq, Data: raw})
}

// Frame relays env unchanged to shard.
func (g *Gateway) Frame(shard int, env gateway.Envelope) error {
	payload, err := jsoncodec.Marshal(env)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata = metadata.ToWatermill(metadata.New().WithInt(metadata.KeyShardID, shard))
	return g.t.Publisher.Publish(g.topics.Shard(shard), msg)
}

// Identifies returns the identify requests seen so far.
func (g *Gateway) Identifies() []gateway.Identify {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.Identify, len(g.identifies))
	copy(out, g.identifies)
	return out
}

// Messages returns the REST message creations seen so far.
func (g *Gateway) Messages() []gateway.CreateMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.CreateMessage, len(g.rest))
	copy(out, g.rest)
	return out
}

// WaitForMessages polls until at least n REST messages arrived or timeout
// elapses.
func (g *Gateway) WaitForMessages(n int, timeout time.Duration) []gateway.CreateMessage {
	deadline := time.Now().Add(timeout)
	for {
		msgs := g.Messages()
		if len(msgs) >= n || time.Now().After(deadline) {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
}
