package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/shardwire/internal/runtime/config"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	newtransport "github.com/drblury/shardwire/transport"

	_ "github.com/drblury/shardwire/transport/transports"
)

// Transport is the publisher/subscriber pair the gateway client runs on.
type Transport = newtransport.Transport

// Factory abstracts how the gateway transport is initialised.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return defaultFactory{registry: newtransport.DefaultRegistry}
}

type defaultFactory struct {
	registry *newtransport.Registry
}

func (f defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	return f.registry.Build(ctx, conf, logger)
}

// CapabilitiesFor reports what the configured transport guarantees.
func CapabilitiesFor(conf *config.Config) newtransport.Capabilities {
	if conf == nil {
		return newtransport.Capabilities{}
	}
	return newtransport.GetCapabilities(conf.GetPubSubSystem())
}
