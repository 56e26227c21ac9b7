/*
Package runtime wires statically declared gateway handlers onto a sharded
gateway client.

# Bootstrap

The Sequencer runs the bootstrap as a strictly ordered state machine:

	Idle → Scanning → Aggregating → Negotiating → Registering → Starting → Running → Stopped

Scanning reads the handler module (catalog.Scan). Aggregating unions the
intents every handler needs (gateway.CapabilitiesFor). Negotiating asks the
Connector for a session with exactly those intents; nothing can change them
afterwards. Registering hands every target the connection yields to the
Registrar, shards first and extensions after. Only then is the connection
started, so no dispatch can arrive before its handlers are wired.

A module that cannot be read or a rejected negotiation moves the Sequencer to
Failed and is returned from Run. A malformed declaration or a handler whose
signature does not fit its slot is reported as a diagnostics.Diagnostic and
the bootstrap carries on without it.

# Sub-packages

  - catalog/: handler declarations, Scan and Aggregate
  - commands/: prefix command extension layered on each shard
  - config/: viper-backed configuration with validation
  - diagnostics/: recoverable bootstrap failures and sinks
  - errors/: sentinel errors
  - events/: event categories, payloads and typed slots
  - gateway/: session negotiation, shards and their watermill routers
  - intents/: the gateway intent bitset
  - logging/: ServiceLogger, watermill adapters and process log setup
  - telemetry/: Prometheus collectors, metrics listener and tracing
  - transport/: transport factory over the transport registry
*/
package runtime
