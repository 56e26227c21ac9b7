package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/shardwire/internal/runtime/commands"
	"github.com/drblury/shardwire/internal/runtime/config"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	"github.com/drblury/shardwire/internal/runtime/intents"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
	transportpkg "github.com/drblury/shardwire/internal/runtime/transport"
)

// GatewayConnector is the production Connector: it builds the configured
// transport, negotiates a sharded gateway session and layers the command
// extensions on every shard.
type GatewayConnector struct {
	Config *config.Config
	// TransportFactory defaults to transportpkg.DefaultFactory().
	TransportFactory transportpkg.Factory
	// Remote defaults to a gateway.BrokerRemote on the built transport.
	Remote gateway.Remote
	// Commands enables the command extensions when non-nil.
	Commands *commands.Registry

	Middlewares []gateway.MiddlewareRegistration
	Hooks       gateway.DispatchHooks
	Metrics     *telemetry.Metrics
	Logger      loggingpkg.ServiceLogger
}

type gatewayConnection struct {
	*gateway.ShardedClient
	transport transportpkg.Transport
}

func (c gatewayConnection) Close() error {
	return errors.Join(c.ShardedClient.Close(), c.transport.Close())
}

func (c *GatewayConnector) Connect(ctx context.Context, caps gateway.Capabilities) (Connection, error) {
	if c.Config == nil {
		return nil, errspkg.ErrConfigRequired
	}
	logger := c.Logger
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	factory := c.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}

	tr, err := factory.Build(ctx, c.Config, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	remote := c.Remote
	if remote == nil {
		remote = gateway.NewBrokerRemote(tr, gateway.BrokerRemoteConfig{
			TopicPrefix: c.Config.Gateway.TopicPrefix,
			Timeout:     c.Config.Gateway.NegotiateTimeout,
			Retries:     c.Config.Gateway.NegotiateRetries,
		}, logger)
	}

	middlewares := c.Middlewares
	if c.Config.Metrics.Enabled {
		middlewares = append(middlewares, gateway.MetricsMiddleware(c.Metrics.Registerer()))
	}

	client, err := gateway.NewShardedClient(ctx, caps, gateway.ClientConfig{
		Token:                 c.Config.Discord.Token,
		ShardCount:            c.Config.Discord.ShardCount,
		TopicPrefix:           c.Config.Gateway.TopicPrefix,
		IdentifyInterval:      c.Config.Gateway.IdentifyInterval,
		Middlewares:           middlewares,
		Hooks:                 c.Hooks,
		Metrics:               c.Metrics,
		TransportCapabilities: transportpkg.CapabilitiesFor(c.Config),
	}, tr, remote, logger)
	if err != nil {
		return nil, errors.Join(err, tr.Close())
	}

	if c.Commands != nil {
		if !caps.Intents().Has(intents.MessageContent) {
			logger.Info("Commands are enabled but no handler requires MessageContent; prefix commands will only see mentions and direct messages", loggingpkg.LogFields{
				"intents": caps.Intents().String(),
			})
		}
		if _, err := commands.UseCommands(client, commands.Config{
			Prefixes:     c.Config.Discord.Prefixes,
			Debug:        c.Config.Debug,
			DebugGuildID: c.Config.Discord.DebugGuildID,
		}, c.Commands, logger); err != nil {
			return nil, errors.Join(err, client.Close(), tr.Close())
		}
	}

	return gatewayConnection{ShardedClient: client, transport: tr}, nil
}
