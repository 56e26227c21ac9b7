package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	"github.com/drblury/shardwire/internal/runtime/gateway/gatewaytest"
	"github.com/drblury/shardwire/internal/runtime/intents"
	"github.com/drblury/shardwire/transport"
)

const waitFor = 2 * time.Second

func onMessage(ctx context.Context, evt *events.MessageCreateEvent) error { return nil }

func onMember(ctx context.Context, evt *events.MemberAddEvent) error { return nil }

func testCapabilities(t *testing.T) gateway.Capabilities {
	t.Helper()
	reg := catalog.NewRegistry("test")
	reg.Register(catalog.Declaration{
		Handler: onMessage,
		Markers: []catalog.Marker{catalog.On(events.MessageCreated, intents.GuildMessages|intents.MessageContent)},
	})
	reg.Register(catalog.Declaration{
		Handler: onMember,
		Markers: []catalog.Marker{catalog.On(events.MemberAdded, intents.GuildMembers)},
	})
	cat, err := catalog.Scan(reg, nil)
	require.NoError(t, err)
	return gateway.CapabilitiesFor(cat)
}

func fastRemote(tr transport.Transport, retries int) *gateway.BrokerRemote {
	return gateway.NewBrokerRemote(tr, gateway.BrokerRemoteConfig{
		Timeout:         100 * time.Millisecond,
		Retries:         retries,
		InitialInterval: time.Millisecond,
	}, nil)
}

func startFake(t *testing.T, tr transport.Transport, behaviour gatewaytest.Behaviour) *gatewaytest.Gateway {
	t.Helper()
	fake, err := gatewaytest.Start(context.Background(), tr, "", behaviour)
	require.NoError(t, err)
	t.Cleanup(fake.Stop)
	return fake
}

func TestCapabilitiesForAggregatesCatalog(t *testing.T) {
	caps := testCapabilities(t)
	assert.True(t, caps.Computed())
	assert.Equal(t, intents.GuildMessages|intents.MessageContent|intents.GuildMembers, caps.Intents())
	assert.Equal(t, 2, caps.Handlers())

	assert.False(t, gateway.Capabilities{}.Computed())
}

func TestNewShardedClientRequiresComputedCapabilities(t *testing.T) {
	tr := gatewaytest.NewTransport()
	_, err := gateway.NewShardedClient(context.Background(), gateway.Capabilities{}, gateway.ClientConfig{Token: "t"}, tr, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrCapabilitiesRequired)

	_, err = gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{}, tr, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrTokenRequired)

	_, err = gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{Token: "t"}, transport.Transport{}, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrTransportRequired)
}

func TestNegotiationRequestsExactlyAggregatedIntents(t *testing.T) {
	tr := gatewaytest.NewTransport()
	fake := startFake(t, tr, gatewaytest.Accept(3))
	caps := testCapabilities(t)

	client, err := gateway.NewShardedClient(context.Background(), caps, gateway.ClientConfig{Token: "secret", ShardCount: 1}, tr, fastRemote(tr, 0), nil)
	require.NoError(t, err)

	identifies := fake.Identifies()
	require.Len(t, identifies, 1)
	assert.Equal(t, caps.Intents(), identifies[0].Intents)
	assert.Equal(t, "secret", identifies[0].Token)
	assert.Equal(t, 1, identifies[0].ShardCount)
	assert.NotEmpty(t, identifies[0].Nonce)

	assert.Equal(t, 3, client.Session().ShardCount)
	assert.Equal(t, caps.Intents(), client.Session().Intents)

	var ids []string
	for _, target := range client.Targets() {
		ids = append(ids, target.TargetID())
	}
	assert.Equal(t, []string{"shard-0", "shard-1", "shard-2"}, ids)
}

func TestNegotiationRejectionIsNotRetried(t *testing.T) {
	tr := gatewaytest.NewTransport()
	fake := startFake(t, tr, gatewaytest.Reject("disallowed intents"))

	_, err := gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{Token: "t"}, tr, fastRemote(tr, 3), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrNegotiationFailure)

	var rejected *gateway.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "disallowed intents", rejected.Reason)
	assert.Len(t, fake.Identifies(), 1)
}

func TestNegotiationRetriesTimeouts(t *testing.T) {
	tr := gatewaytest.NewTransport()
	fake := startFake(t, tr, gatewaytest.AcceptAfter(1, 1))

	client, err := gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{Token: "t"}, tr, fastRemote(tr, 2), nil)
	require.NoError(t, err)
	assert.Len(t, client.Shards(), 1)

	identifies := fake.Identifies()
	require.Len(t, identifies, 2)
	assert.NotEqual(t, identifies[0].Nonce, identifies[1].Nonce)
}

func TestNegotiationGivesUpAfterRetries(t *testing.T) {
	tr := gatewaytest.NewTransport()
	fake := startFake(t, tr, gatewaytest.AcceptAfter(10, 1))

	_, err := gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{Token: "t"}, tr, fastRemote(tr, 1), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrNegotiationFailure)
	assert.ErrorIs(t, err, gateway.ErrIdentifyTimeout)
	assert.Len(t, fake.Identifies(), 2)
}

func TestNegotiationRejectsEmptySession(t *testing.T) {
	remote := gateway.RemoteFunc(func(ctx context.Context, id gateway.Identify) (gateway.Session, error) {
		return gateway.Session{ID: "s"}, nil
	})
	_, err := gateway.NewShardedClient(context.Background(), testCapabilities(t), gateway.ClientConfig{Token: "t"}, gatewaytest.NewTransport(), remote, nil)
	assert.ErrorIs(t, err, errspkg.ErrNegotiationFailure)
}

func newStartedClient(t *testing.T, shards int, conf gateway.ClientConfig, subscribe func(c *gateway.ShardedClient)) (*gateway.ShardedClient, *gatewaytest.Gateway) {
	t.Helper()
	tr := gatewaytest.NewTransport()
	fake := startFake(t, tr, gatewaytest.Accept(shards))
	conf.Token = "t"

	client, err := gateway.NewShardedClient(context.Background(), testCapabilities(t), conf, tr, fastRemote(tr, 0), nil)
	require.NoError(t, err)
	if subscribe != nil {
		subscribe(client)
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
		_ = client.Wait()
	})
	return client, fake
}

func subscribe(t *testing.T, target events.Target, c events.Category, key string, handler any) {
	t.Helper()
	slot, ok := target.Slot(c)
	require.True(t, ok)
	added, err := slot.Subscribe(key, handler)
	require.NoError(t, err)
	require.True(t, added)
}

func TestDispatchReachesHandlersOnItsShardOnly(t *testing.T) {
	type delivery struct {
		shard   int
		content string
	}
	got := make(chan delivery, 4)

	_, fake := newStartedClient(t, 2, gateway.ClientConfig{}, func(c *gateway.ShardedClient) {
		for _, shard := range c.Shards() {
			subscribe(t, shard, events.MessageCreated, "record", func(ctx context.Context, evt *events.MessageCreateEvent) error {
				s, ok := gateway.ShardFromContext(ctx)
				if !ok {
					return errors.New("no shard in context")
				}
				got <- delivery{shard: s.ID(), content: evt.Content}
				return nil
			})
		}
	})

	require.NoError(t, fake.Frame(1, gateway.Envelope{Op: gateway.OpHeartbeatAck}))
	require.NoError(t, fake.Dispatch(1, "TYPING_START", map[string]string{"user_id": "1"}))
	require.NoError(t, fake.Dispatch(1, "MESSAGE_CREATE", events.Message{ID: "m1", Content: "hello"}))

	select {
	case d := <-got:
		assert.Equal(t, delivery{shard: 1, content: "hello"}, d)
	case <-time.After(waitFor):
		t.Fatal("dispatch never reached the handler")
	}

	select {
	case d := <-got:
		t.Fatalf("unexpected second delivery %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartSealsShardSlots(t *testing.T) {
	client, _ := newStartedClient(t, 1, gateway.ClientConfig{}, nil)
	shard := client.Shards()[0]
	assert.True(t, shard.Started())

	slot, ok := shard.Slot(events.Ready)
	require.True(t, ok)
	_, err := slot.Subscribe("late", func(ctx context.Context, evt *events.ReadyEvent) error { return nil })
	assert.ErrorIs(t, err, errspkg.ErrTargetStarted)

	assert.ErrorIs(t, shard.Start(context.Background()), errspkg.ErrTargetStarted)
	assert.ErrorIs(t, client.Start(context.Background()), errspkg.ErrTargetStarted)
}

func TestShardReplyPublishesToREST(t *testing.T) {
	_, fake := newStartedClient(t, 1, gateway.ClientConfig{}, func(c *gateway.ShardedClient) {
		subscribe(t, c.Shards()[0], events.MessageCreated, "echo", func(ctx context.Context, evt *events.MessageCreateEvent) error {
			s, _ := gateway.ShardFromContext(ctx)
			return s.Reply(ctx, evt.Message, "echo: "+evt.Content)
		})
	})

	require.NoError(t, fake.Dispatch(0, "MESSAGE_CREATE", events.Message{ID: "m1", ChannelID: "c1", Content: "hi"}))

	msgs := fake.WaitForMessages(1, waitFor)
	require.Len(t, msgs, 1)
	assert.Equal(t, gateway.CreateMessage{ChannelID: "c1", Content: "echo: hi", ReplyTo: "m1", ShardID: 0}, msgs[0])
}

func TestDispatchHooksObserveFailures(t *testing.T) {
	failures := make(chan gateway.DispatchContext, 1)
	hooks := gateway.DispatchHooks{
		OnDispatchError: func(ctx gateway.DispatchContext, err error) {
			failures <- ctx
		},
	}

	_, fake := newStartedClient(t, 1, gateway.ClientConfig{Hooks: hooks}, func(c *gateway.ShardedClient) {
		subscribe(t, c.Shards()[0], events.MemberAdded, "boom", func(ctx context.Context, evt *events.MemberAddEvent) error {
			return errors.New("boom")
		})
	})

	require.NoError(t, fake.Dispatch(0, "GUILD_MEMBER_ADD", events.MemberAddEvent{GuildID: "g1"}))

	select {
	case dc := <-failures:
		assert.Equal(t, events.MemberAdded, dc.Category)
		assert.Equal(t, "GUILD_MEMBER_ADD", dc.DispatchType)
		assert.NotEmpty(t, dc.CorrelationID)
		assert.Positive(t, dc.Sequence)
	case <-time.After(waitFor):
		t.Fatal("error hook never fired")
	}
}

func TestDispatchHooksMergeOrder(t *testing.T) {
	var order []string
	a := gateway.DispatchHooks{OnDispatchStart: func(gateway.DispatchContext) { order = append(order, "a") }}
	b := gateway.DispatchHooks{OnDispatchStart: func(gateway.DispatchContext) { order = append(order, "b") }}

	merged := a.Merge(b)
	merged.OnDispatchStart(gateway.DispatchContext{})
	assert.Equal(t, []string{"a", "b"}, order)

	assert.Nil(t, gateway.DispatchHooks{}.Merge(gateway.DispatchHooks{}).OnDispatchDone)
}

type stubExtension struct {
	*events.SlotSet
	id     string
	sealed bool
}

func (s *stubExtension) TargetID() string { return s.id }

func (s *stubExtension) Seal() {
	s.sealed = true
	s.SlotSet.Seal()
}

func TestExtensionsFollowShardsAndSealOnStart(t *testing.T) {
	ext := &stubExtension{SlotSet: events.NewSlotSet(), id: "shard-0/stub"}

	client, _ := newStartedClient(t, 2, gateway.ClientConfig{}, func(c *gateway.ShardedClient) {
		require.NoError(t, c.AddExtension(ext))
	})

	targets := client.Targets()
	require.Len(t, targets, 3)
	assert.Equal(t, "shard-0/stub", targets[2].TargetID())
	assert.True(t, ext.sealed)
	assert.ErrorIs(t, client.AddExtension(&stubExtension{SlotSet: events.NewSlotSet(), id: "late"}), errspkg.ErrTargetStarted)
}

func TestTopics(t *testing.T) {
	topics := gateway.NewTopics("")
	assert.Equal(t, "gateway.identify", topics.Identify())
	assert.Equal(t, "gateway.session", topics.Session())
	assert.Equal(t, "gateway.rest", topics.REST())
	assert.Equal(t, "gateway.shard.4", gateway.NewTopics("gateway").Shard(4))
}

func TestIdentifyStringHidesToken(t *testing.T) {
	id := gateway.Identify{Token: "secret", Intents: intents.Guilds, Nonce: "n"}
	assert.NotContains(t, id.String(), "secret")
}
