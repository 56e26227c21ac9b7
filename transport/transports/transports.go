// Package transports registers every built-in gateway transport with the
// default registry.
package transports

import (
	_ "github.com/drblury/shardwire/transport/aws"
	_ "github.com/drblury/shardwire/transport/channel"
	_ "github.com/drblury/shardwire/transport/http"
	_ "github.com/drblury/shardwire/transport/jetstream"
	_ "github.com/drblury/shardwire/transport/kafka"
	_ "github.com/drblury/shardwire/transport/nats"
	_ "github.com/drblury/shardwire/transport/rabbitmq"
)
