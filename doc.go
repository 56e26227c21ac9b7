// Package shardwire wires event handlers onto a sharded gateway client built
// on Watermill. Handlers declare the events they consume, and shardwire works
// out the gateway intents from those declarations. It negotiates a session
// with exactly those intents and subscribes every handler on every shard
// before any shard starts.
//
// Handlers are plain functions registered from init:
//
//	func init() {
//		shardwire.Handle(onMessage, shardwire.On(shardwire.MessageCreated,
//			shardwire.IntentGuildMessages|shardwire.IntentMessageContent))
//	}
//
//	func onMessage(ctx context.Context, evt *shardwire.MessageCreateEvent) error { ... }
//
// A Sequencer drives the bootstrap through Scanning, Aggregating, Negotiating,
// Registering, Starting and Running. Malformed declarations and handlers
// whose signature does not fit their event are reported as diagnostics and
// skipped; the rest of the bootstrap continues. A module that cannot be read,
// or a gateway that refuses the session, aborts it.
//
// # Transports
//
// Gateway traffic travels over a broker selected in Config:
//   - channel: In-memory Go channels for tests and single-process setups
//   - kafka: Partitioned shard topics with consumer groups
//   - rabbitmq: AMQP queues
//   - aws: SNS/SQS with LocalStack support
//   - nats: Core NATS subjects
//   - http: Webhook-style delivery from a gateway proxy
//
// # Middleware
//
// Every shard router acknowledges dispatches, recovers from handler panics,
// stamps correlation IDs, logs frames and traces each dispatch with
// OpenTelemetry. Prometheus router metrics are added when metrics are enabled.
// DispatchHooks observe the start, completion and failure of each dispatch.
//
// # Commands
//
// GatewayConnector layers a prefix command extension on every shard when a
// CommandRegistry is supplied. Its CommandExecuted and CommandErrored events
// are wired like any other, after the shards they belong to.
package shardwire
