// Package gateway is the sharded gateway client. It negotiates a session with
// the remote gateway over the configured transport, then runs one receive loop
// per shard and fans each dispatch out to the handlers subscribed on that
// shard's event slots.
package gateway

import (
	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/intents"
)

// Capabilities is the intent set a session is negotiated with. The only way
// to obtain a usable value is CapabilitiesFor, so a client cannot be built
// before the handler catalog has been aggregated.
type Capabilities struct {
	intents  intents.Intents
	handlers int
	computed bool
}

// CapabilitiesFor aggregates the intents required by every entry in c.
func CapabilitiesFor(c *catalog.Catalog) Capabilities {
	return Capabilities{
		intents:  catalog.Aggregate(c),
		handlers: len(c.Handlers()),
		computed: c != nil,
	}
}

func (c Capabilities) Intents() intents.Intents { return c.intents }

// Handlers is the number of distinct handlers the intents were computed from.
func (c Capabilities) Handlers() int { return c.handlers }

// Computed reports whether c came from CapabilitiesFor.
func (c Capabilities) Computed() bool { return c.computed }

func (c Capabilities) String() string { return c.intents.String() }
