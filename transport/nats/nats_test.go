package nats

import (
	"context"
	"errors"
	"testing"

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
	assert.Equal(t, "nats", caps.Name)
	assert.False(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsTracing)
	assert.Equal(t, transport.NATSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	pub, pubCfg, subCfg := stubFactories(t, nil, nil)

	cfg := &transporttest.Config{NATSURL: "nats://localhost:4222", ConsumerGroup: "bots"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, tr.Publisher)
	assert.Equal(t, "nats://localhost:4222", pubCfg.URL)
	assert.True(t, pubCfg.JetStream.Disabled)
	assert.Len(t, pubCfg.NatsOptions, len(ConnectOptions()))
	assert.Equal(t, "bots", subCfg.QueueGroupPrefix)
	assert.True(t, subCfg.JetStream.Disabled)
}

func TestBuildPublisherError(t *testing.T) {
	stubFactories(t, errors.New("publisher error"), nil)
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "publisher error")
}

func TestBuildSubscriberErrorClosesPublisher(t *testing.T) {
	pub, _, _ := stubFactories(t, nil, errors.New("subscriber error"))
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "subscriber error")
	assert.True(t, pub.Closed)
}
