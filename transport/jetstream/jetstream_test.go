package jetstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shardwire/transport"
	"github.com/drblury/shardwire/transport/transporttest"
)

func stubFactories(t *testing.T, pubErr, subErr error) (*transporttest.Publisher, *wmnats.PublisherConfig, *wmnats.SubscriberConfig) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})

	pub := &transporttest.Publisher{}
	var pubCfg wmnats.PublisherConfig
	var subCfg wmnats.SubscriberConfig
	PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		if pubErr != nil {
			return nil, pubErr
		}
		return pub, nil
	}
	SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		if subErr != nil {
			return nil, subErr
		}
		return &transporttest.Subscriber{}, nil
	}
	return pub, &pubCfg, &subCfg
}

func TestRegister(t *testing.T) {
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "jetstream", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsReliableDelivery())
	assert.Equal(t, transport.JetStreamCapabilities, Capabilities())
}

func TestConfigWithDefaults(t *testing.T) {
	t.Run("empty config gets defaults", func(t *testing.T) {
		result := Config{}.withDefaults()
		assert.Equal(t, DefaultDurablePrefix, result.DurablePrefix)
		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
	})

	t.Run("custom values preserved", func(t *testing.T) {
		cfg := Config{DurablePrefix: "bots", MaxDeliver: 5, AckWait: time.Minute}
		assert.Equal(t, cfg, cfg.withDefaults())
	})

	t.Run("negative values get defaults", func(t *testing.T) {
		result := Config{MaxDeliver: -1, AckWait: -1}.withDefaults()
		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
	})
}

func TestBuild(t *testing.T) {
	pub, pubCfg, subCfg := stubFactories(t, nil, nil)

	cfg := &transporttest.Config{NATSURL: "nats://localhost:4222", ConsumerGroup: "bots"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, tr.Publisher)
	assert.Equal(t, "nats://localhost:4222", pubCfg.URL)
	assert.False(t, pubCfg.JetStream.Disabled)
	assert.True(t, pubCfg.JetStream.AutoProvision)
	assert.Equal(t, "bots", subCfg.JetStream.DurablePrefix)
	assert.Len(t, subCfg.JetStream.SubscribeOptions, 4)
	assert.Equal(t, DefaultAckWait, subCfg.AckWaitTimeout)
}

func TestBuildDefaultsDurablePrefix(t *testing.T) {
	_, _, subCfg := stubFactories(t, nil, nil)
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDurablePrefix, subCfg.JetStream.DurablePrefix)
}

func TestBuildSubscriberErrorClosesPublisher(t *testing.T) {
	pub, _, _ := stubFactories(t, nil, errors.New("subscriber error"))
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "subscriber error")
	assert.True(t, pub.Closed)
}
