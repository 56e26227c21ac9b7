package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/diagnostics"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
)

// State is a bootstrap phase. States only move forward.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateAggregating
	StateNegotiating
	StateRegistering
	StateStarting
	StateRunning
	StateStopped
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "Idle",
	StateScanning:    "Scanning",
	StateAggregating: "Aggregating",
	StateNegotiating: "Negotiating",
	StateRegistering: "Registering",
	StateStarting:    "Starting",
	StateRunning:     "Running",
	StateStopped:     "Stopped",
	StateFailed:      "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Connection is the set of targets a Connector produced. Targets must be
// returned in wiring order: every primary shard, then every extension.
type Connection interface {
	Targets() []events.Target
	// Start begins delivering events. It is only called after every target
	// has been registered.
	Start(ctx context.Context) error
	// Wait blocks until the connection stopped.
	Wait() error
	Close() error
}

// Connector negotiates a session with exactly caps and returns its
// connection, not yet started.
type Connector interface {
	Connect(ctx context.Context, caps gateway.Capabilities) (Connection, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, caps gateway.Capabilities) (Connection, error)

func (f ConnectorFunc) Connect(ctx context.Context, caps gateway.Capabilities) (Connection, error) {
	return f(ctx, caps)
}

// Dependencies holds the Sequencer's collaborators.
type Dependencies struct {
	// Module is scanned for handlers. Defaults to catalog.DefaultRegistry.
	Module    catalog.Module
	Connector Connector
	// Sink receives diagnostics in addition to the Sequencer's own
	// collector and log.
	Sink    diagnostics.Sink
	Logger  loggingpkg.ServiceLogger
	Metrics *telemetry.Metrics
	// OnState observes every transition.
	OnState func(from, to State)
}

// Sequencer runs the bootstrap: scan the module, aggregate intents, negotiate
// a connection with them, wire every handler onto every target, then start.
type Sequencer struct {
	deps      Dependencies
	logger    loggingpkg.ServiceLogger
	collector *diagnostics.Collector
	sink      diagnostics.Sink
	scanSink  diagnostics.Sink
	registrar *Registrar

	ran     atomic.Bool
	running chan struct{}

	mu      sync.RWMutex
	state   State
	catalog *catalog.Catalog
	caps    gateway.Capabilities
	reports []RegistrationReport
}

// NewSequencer validates deps and returns an idle Sequencer.
func NewSequencer(deps Dependencies) (*Sequencer, error) {
	if deps.Connector == nil {
		return nil, errspkg.ErrConnectorRequired
	}
	if deps.Module == nil {
		deps.Module = catalog.DefaultRegistry
	}
	if deps.Logger == nil {
		deps.Logger = loggingpkg.Nop()
	}
	logger := loggingpkg.Component(deps.Logger, "bootstrap")

	collector := diagnostics.NewCollector()
	// The registrar counts its own diagnostics; scan and negotiation
	// diagnostics are counted here.
	metricsSink := diagnostics.SinkFunc(func(d diagnostics.Diagnostic) {
		deps.Metrics.Diagnostic(string(d.Kind))
	})
	sink := diagnostics.Multi(collector, diagnostics.LogSink(logger), deps.Sink)

	return &Sequencer{
		deps:      deps,
		logger:    logger,
		collector: collector,
		sink:      sink,
		registrar: NewRegistrar(sink, deps.Logger, deps.Metrics),
		running:   make(chan struct{}),
		scanSink:  diagnostics.Multi(sink, metricsSink),
	}, nil
}

// Run performs the bootstrap and blocks until ctx is cancelled or the
// connection stops. It can only be called once. Any failure before Running
// closes whatever was opened and is returned.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return errspkg.ErrSequencerReused
	}

	s.transition(StateScanning)
	cat, err := catalog.Scan(s.deps.Module, s.scanSink)
	if err != nil {
		s.scanSink.Report(diagnostics.Diagnostic{
			Kind:   diagnostics.KindLoadFailure,
			Module: moduleName(s.deps.Module),
			Err:    err,
		})
		return s.fail(err)
	}
	s.mu.Lock()
	s.catalog = cat
	s.mu.Unlock()
	s.logger.Info("Handlers scanned", loggingpkg.LogFields{
		"module":   cat.Module(),
		"handlers": len(cat.Handlers()),
		"entries":  cat.Len(),
	})

	s.transition(StateAggregating)
	caps := gateway.CapabilitiesFor(cat)
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
	s.logger.Info("Intents aggregated", loggingpkg.LogFields{
		"intents":    caps.Intents().String(),
		"privileged": caps.Intents().Privileged().String(),
	})

	s.transition(StateNegotiating)
	conn, err := s.deps.Connector.Connect(ctx, caps)
	if err != nil {
		if !errors.Is(err, errspkg.ErrNegotiationFailure) {
			err = fmt.Errorf("%w: %w", errspkg.ErrNegotiationFailure, err)
		}
		s.scanSink.Report(diagnostics.Diagnostic{Kind: diagnostics.KindNegotiationFailure, Err: err})
		return s.fail(err)
	}

	s.transition(StateRegistering)
	total := RegistrationReport{Target: "*"}
	for _, target := range conn.Targets() {
		report, err := s.registrar.Register(cat, target)
		if err != nil {
			return s.fail(errors.Join(err, conn.Close()))
		}
		s.mu.Lock()
		s.reports = append(s.reports, report)
		s.mu.Unlock()
		total = total.Add(report)
	}
	s.logger.Info("Handlers registered", total.fields())

	s.transition(StateStarting)
	if err := conn.Start(ctx); err != nil {
		return s.fail(errors.Join(fmt.Errorf("start connection: %w", err), conn.Close()))
	}

	s.transition(StateRunning)
	close(s.running)

	waitErr := make(chan error, 1)
	go func() { waitErr <- conn.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down", nil)
		closeErr := conn.Close()
		err := errors.Join(<-waitErr, closeErr)
		if err != nil {
			return s.fail(err)
		}
	case err := <-waitErr:
		closeErr := conn.Close()
		if err = errors.Join(err, closeErr); err != nil {
			return s.fail(err)
		}
	}
	s.transition(StateStopped)
	return nil
}

func (s *Sequencer) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.deps.Metrics.State(to.String())
	s.logger.Debug("Bootstrap state changed", loggingpkg.LogFields{"from": from.String(), "to": to.String()})
	if s.deps.OnState != nil {
		s.deps.OnState(from, to)
	}
}

func (s *Sequencer) fail(err error) error {
	s.logger.Error("Bootstrap failed", err, loggingpkg.LogFields{"state": s.State().String()})
	s.transition(StateFailed)
	return err
}

func moduleName(m catalog.Module) string {
	if m == nil {
		return ""
	}
	return m.ModuleName()
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Running is closed once every target is registered and started.
func (s *Sequencer) Running() <-chan struct{} {
	return s.running
}

// Diagnostics returns every diagnostic reported so far.
func (s *Sequencer) Diagnostics() []diagnostics.Diagnostic {
	return s.collector.All()
}

// Catalog returns the scanned catalog, or nil before Aggregating.
func (s *Sequencer) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Capabilities returns the aggregated capabilities.
func (s *Sequencer) Capabilities() gateway.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// Reports returns one RegistrationReport per registered target, in wiring
// order.
func (s *Sequencer) Reports() []RegistrationReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RegistrationReport, len(s.reports))
	copy(out, s.reports)
	return out
}

// Registrar exposes the registrar used for wiring.
func (s *Sequencer) Registrar() *Registrar {
	return s.registrar
}
