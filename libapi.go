package shardwire

import (
	runtimepkg "github.com/drblury/shardwire/internal/runtime"
	catalogpkg "github.com/drblury/shardwire/internal/runtime/catalog"
	commandspkg "github.com/drblury/shardwire/internal/runtime/commands"
	configpkg "github.com/drblury/shardwire/internal/runtime/config"
	diagpkg "github.com/drblury/shardwire/internal/runtime/diagnostics"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	eventspkg "github.com/drblury/shardwire/internal/runtime/events"
	gatewaypkg "github.com/drblury/shardwire/internal/runtime/gateway"
	idspkg "github.com/drblury/shardwire/internal/runtime/ids"
	intentspkg "github.com/drblury/shardwire/internal/runtime/intents"
	jsoncodec "github.com/drblury/shardwire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	metadatapkg "github.com/drblury/shardwire/internal/runtime/metadata"
	telemetrypkg "github.com/drblury/shardwire/internal/runtime/telemetry"
	transportpkg "github.com/drblury/shardwire/internal/runtime/transport"
	newtransport "github.com/drblury/shardwire/transport"
)

type (
	Config           = configpkg.Config
	LoadOptions      = configpkg.LoadOptions
	Transport        = transportpkg.Transport
	TransportFactory = transportpkg.Factory

	Intents = intentspkg.Intents

	Category   = eventspkg.Category
	Payload    = eventspkg.Payload
	Target     = eventspkg.Target
	Slot       = eventspkg.Slot
	AnyHandler = eventspkg.AnyHandler

	Handler[E eventspkg.Payload] = eventspkg.Handler[E]

	ReadyEvent           = eventspkg.ReadyEvent
	GuildCreateEvent     = eventspkg.GuildCreateEvent
	MessageCreateEvent   = eventspkg.MessageCreateEvent
	MessageUpdateEvent   = eventspkg.MessageUpdateEvent
	MessageDeleteEvent   = eventspkg.MessageDeleteEvent
	MemberAddEvent       = eventspkg.MemberAddEvent
	MemberRemoveEvent    = eventspkg.MemberRemoveEvent
	ReactionAddEvent     = eventspkg.ReactionAddEvent
	CommandExecutedEvent = eventspkg.CommandExecutedEvent
	CommandErroredEvent  = eventspkg.CommandErroredEvent

	Marker      = catalogpkg.Marker
	Declaration = catalogpkg.Declaration
	Module      = catalogpkg.Module
	Catalog     = catalogpkg.Catalog
	Entry       = catalogpkg.Entry

	Diagnostic     = diagpkg.Diagnostic
	DiagnosticKind = diagpkg.Kind
	DiagnosticSink = diagpkg.Sink

	Capabilities           = gatewaypkg.Capabilities
	ShardedClient          = gatewaypkg.ShardedClient
	Shard                  = gatewaypkg.Shard
	ClientConfig           = gatewaypkg.ClientConfig
	Remote                 = gatewaypkg.Remote
	DispatchContext        = gatewaypkg.DispatchContext
	DispatchHooks          = gatewaypkg.DispatchHooks
	MiddlewareBuilder      = gatewaypkg.MiddlewareBuilder
	MiddlewareRegistration = gatewaypkg.MiddlewareRegistration

	Command         = commandspkg.Command
	CommandContext  = commandspkg.Context
	CommandRegistry = commandspkg.Registry

	Sequencer          = runtimepkg.Sequencer
	Dependencies       = runtimepkg.Dependencies
	State              = runtimepkg.State
	Connection         = runtimepkg.Connection
	Connector          = runtimepkg.Connector
	GatewayConnector   = runtimepkg.GatewayConnector
	Registrar          = runtimepkg.Registrar
	RegistrationReport = runtimepkg.RegistrationReport
	Status             = runtimepkg.Status

	Metrics = telemetrypkg.Metrics

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewSequencer   = runtimepkg.NewSequencer
	NewRegistrar   = runtimepkg.NewRegistrar
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Defaults
	ValidateConfig = configpkg.ValidateConfig

	// Handler declarations
	RegisterHandler    = catalogpkg.Register
	Handle             = catalogpkg.Handle
	On                 = catalogpkg.On
	NewHandlerRegistry = catalogpkg.NewRegistry
	Modules            = catalogpkg.Modules
	Scan               = catalogpkg.Scan
	Aggregate          = catalogpkg.Aggregate
	CapabilitiesFor    = gatewaypkg.CapabilitiesFor
	ParseIntents       = intentspkg.Parse
	UnionIntents       = intentspkg.Union

	// Commands
	NewCommandRegistry  = commandspkg.NewRegistry
	RegisterCommand     = commandspkg.Register
	MustRegisterCommand = commandspkg.MustRegister

	// Gateway client
	NewShardedClient        = gatewaypkg.NewShardedClient
	NewBrokerRemote         = gatewaypkg.NewBrokerRemote
	ShardFromContext        = gatewaypkg.ShardFromContext
	DefaultMiddlewares      = gatewaypkg.DefaultMiddlewares
	AckMiddleware           = gatewaypkg.AckMiddleware
	RecovererMiddleware     = gatewaypkg.RecovererMiddleware
	CorrelationIDMiddleware = gatewaypkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = gatewaypkg.LogMessagesMiddleware
	TracerMiddleware        = gatewaypkg.TracerMiddleware
	MetricsMiddleware       = gatewaypkg.MetricsMiddleware
	LoggingHooks            = gatewaypkg.LoggingHooks
	MetricsHooks            = gatewaypkg.MetricsHooks

	// Diagnostics sinks
	NewDiagnosticCollector = diagpkg.NewCollector
	LogSink                = diagpkg.LogSink
	ChannelSink            = diagpkg.ChannelSink
	MultiSink              = diagpkg.Multi

	NewMetrics              = telemetrypkg.NewMetrics
	SetupTracing            = telemetrypkg.SetupTracing
	DefaultTransportFactory = transportpkg.DefaultFactory

	// Modular transport registry.
	// Import individual transports via: _ "github.com/drblury/shardwire/transport/kafka"
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	ErrModuleRequired       = errspkg.ErrModuleRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrCatalogRequired      = errspkg.ErrCatalogRequired
	ErrTargetRequired       = errspkg.ErrTargetRequired
	ErrCapabilitiesRequired = errspkg.ErrCapabilitiesRequired
	ErrTokenRequired        = errspkg.ErrTokenRequired
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrConnectorRequired    = errspkg.ErrConnectorRequired
	ErrSequencerReused      = errspkg.ErrSequencerReused
	ErrTargetStarted        = errspkg.ErrTargetStarted
	ErrMalformedDeclaration = errspkg.ErrMalformedDeclaration
	ErrSignatureMismatch    = errspkg.ErrSignatureMismatch
	ErrLateRegistration     = errspkg.ErrLateRegistration
	ErrLoadFailure          = errspkg.ErrLoadFailure
	ErrNegotiationFailure   = errspkg.ErrNegotiationFailure
	ErrCommandNotFound      = errspkg.ErrCommandNotFound

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	SetupLogging         = loggingpkg.Setup

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Metadata keys carried next to gateway traffic.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyShardID       = metadatapkg.KeyShardID
	MetadataKeySequence      = metadatapkg.KeySequence
	MetadataKeyDispatchType  = metadatapkg.KeyDispatchType
)

// Bootstrap states.
const (
	StateIdle        = runtimepkg.StateIdle
	StateScanning    = runtimepkg.StateScanning
	StateAggregating = runtimepkg.StateAggregating
	StateNegotiating = runtimepkg.StateNegotiating
	StateRegistering = runtimepkg.StateRegistering
	StateStarting    = runtimepkg.StateStarting
	StateRunning     = runtimepkg.StateRunning
	StateStopped     = runtimepkg.StateStopped
	StateFailed      = runtimepkg.StateFailed
)

// Event categories.
const (
	Ready           = eventspkg.Ready
	GuildCreated    = eventspkg.GuildCreated
	MessageCreated  = eventspkg.MessageCreated
	MessageUpdated  = eventspkg.MessageUpdated
	MessageDeleted  = eventspkg.MessageDeleted
	MemberAdded     = eventspkg.MemberAdded
	MemberRemoved   = eventspkg.MemberRemoved
	ReactionAdded   = eventspkg.ReactionAdded
	CommandExecuted = eventspkg.CommandExecuted
	CommandErrored  = eventspkg.CommandErrored
)

// Gateway intents.
const (
	IntentsNone          = intentspkg.None
	IntentGuilds         = intentspkg.Guilds
	IntentGuildMembers   = intentspkg.GuildMembers
	IntentGuildMessages  = intentspkg.GuildMessages
	IntentGuildPresences = intentspkg.GuildPresences
	IntentMessageContent = intentspkg.MessageContent
	IntentDirectMessages = intentspkg.DirectMessages
	IntentGuildReactions = intentspkg.GuildMessageReactions
	IntentsPrivileged    = intentspkg.Privileged
)
