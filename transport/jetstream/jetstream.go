// Package jetstream provides a NATS JetStream transport. Unlike core NATS,
// shard subjects are persisted in a stream, so a client that reconnects
// resumes where its durable consumer left off.
package jetstream

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/drblury/shardwire/transport"
	natstransport "github.com/drblury/shardwire/transport/nats"
)

// TransportName is the name used to register this transport.
const TransportName = "jetstream"

const (
	// DefaultMaxDeliver bounds redelivery of a dispatch the client never
	// acknowledged.
	DefaultMaxDeliver = 3

	// DefaultAckWait is how long the server waits for an ack.
	DefaultAckWait = 30 * time.Second

	// DefaultDurablePrefix names durable consumers when no consumer group is
	// configured.
	DefaultDurablePrefix = "shardwire"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register adds the transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.JetStreamCapabilities)
}

// Config tunes the JetStream consumers.
type Config struct {
	DurablePrefix string
	MaxDeliver    int
	AckWait       time.Duration
}

func (c Config) withDefaults() Config {
	if c.DurablePrefix == "" {
		c.DurablePrefix = DefaultDurablePrefix
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	return c
}

// Build creates a JetStream transport. Streams are provisioned on first use
// and the consumer group, when set, names the durable consumers so client
// instances share progress.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	conf := Config{DurablePrefix: cfg.GetConsumerGroup()}.withDefaults()
	url := cfg.GetNATSURL()
	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := PublisherFactory(
		wmnats.PublisherConfig{
			URL:         url,
			NatsOptions: natstransport.ConnectOptions(),
			Marshaler:   marshaler,
			JetStream: wmnats.JetStreamConfig{
				AutoProvision: true,
				TrackMsgId:    true,
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		wmnats.SubscriberConfig{
			URL:            url,
			NatsOptions:    natstransport.ConnectOptions(),
			Unmarshaler:    marshaler,
			AckWaitTimeout: conf.AckWait,
			JetStream: wmnats.JetStreamConfig{
				AutoProvision: true,
				DurablePrefix: conf.DurablePrefix,
				SubscribeOptions: []natsgo.SubOpt{
					natsgo.DeliverAll(),
					natsgo.AckExplicit(),
					natsgo.MaxDeliver(conf.MaxDeliver),
					natsgo.AckWait(conf.AckWait),
				},
			},
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

func Capabilities() transport.Capabilities {
	return transport.JetStreamCapabilities
}
