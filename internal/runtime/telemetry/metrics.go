// Package telemetry owns the process-wide observability plumbing: Prometheus
// collectors for the bootstrap and dispatch path, the HTTP listeners that
// expose them, and the OpenTelemetry tracer provider.
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector registered by this package.
const Namespace = "shardwire"

// Metrics holds the bootstrap and dispatch collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registerer prometheus.Registerer

	registrations    *prometheus.CounterVec
	diagnostics      *prometheus.CounterVec
	negotiations     *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	sequencerState   *prometheus.GaugeVec
	shards           prometheus.Gauge

	mu     sync.Mutex
	states []string
}

func newCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewMetrics creates the collectors and registers them with registerer, or
// with prometheus.DefaultRegisterer when registerer is nil. Collectors that
// are already registered are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registerer:    registerer,
		registrations: newCounterVec("registrar", "registrations_total", "Handler wiring attempts by outcome", "outcome", "target_kind"),
		diagnostics:   newCounterVec("bootstrap", "diagnostics_total", "Recovered bootstrap failures by kind", "kind"),
		negotiations:  newCounterVec("gateway", "negotiations_total", "Gateway session negotiations by outcome", "outcome"),
		dispatches:    newCounterVec("gateway", "dispatches_total", "Gateway dispatches by category and outcome", "category", "outcome"),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent running every handler for one dispatch",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"category"}),
		sequencerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "bootstrap",
			Name:      "state",
			Help:      "1 for the state the bootstrap sequencer is in, 0 otherwise",
		}, []string{"state"}),
		shards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "shards",
			Help:      "Shards opened by the negotiated session",
		}),
	}

	var err error
	if m.registrations, err = register(registerer, m.registrations); err != nil {
		return nil, err
	}
	if m.diagnostics, err = register(registerer, m.diagnostics); err != nil {
		return nil, err
	}
	if m.negotiations, err = register(registerer, m.negotiations); err != nil {
		return nil, err
	}
	if m.dispatches, err = register(registerer, m.dispatches); err != nil {
		return nil, err
	}
	if m.dispatchDuration, err = register(registerer, m.dispatchDuration); err != nil {
		return nil, err
	}
	if m.sequencerState, err = register(registerer, m.sequencerState); err != nil {
		return nil, err
	}
	if m.shards, err = register(registerer, m.shards); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Registration counts one wiring outcome ("wired", "skipped", "duplicate",
// "failed") against a target kind such as "shard" or "commands".
func (m *Metrics) Registration(outcome, targetKind string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome, targetKind).Inc()
}

func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

func (m *Metrics) Negotiation(outcome string) {
	if m == nil {
		return
	}
	m.negotiations.WithLabelValues(outcome).Inc()
}

// Dispatch records one dispatch and how long its handlers took.
func (m *Metrics) Dispatch(category string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dispatches.WithLabelValues(category, outcome).Inc()
	m.dispatchDuration.WithLabelValues(category).Observe(took.Seconds())
}

// Shards records the shard count of the negotiated session.
func (m *Metrics) Shards(n int) {
	if m == nil {
		return
	}
	m.shards.Set(float64(n))
}

// State marks state as current, zeroing every state seen before.
func (m *Metrics) State(state string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		m.sequencerState.WithLabelValues(s).Set(0)
	}
	seen := false
	for _, s := range m.states {
		if s == state {
			seen = true
			break
		}
	}
	if !seen {
		m.states = append(m.states, state)
	}
	m.sequencerState.WithLabelValues(state).Set(1)
}

// Registerer returns the registerer the collectors were added to.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registerer
}

// RouterMiddleware adds watermill's Prometheus router metrics to router and
// returns the per-handler middleware. Each shard router is labelled by
// subsystem.
func RouterMiddleware(registerer prometheus.Registerer, subsystem string, router *message.Router) message.HandlerMiddleware {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	builder := metrics.NewPrometheusMetricsBuilder(registerer, Namespace, subsystem)
	builder.AddPrometheusRouterMetrics(router)
	return builder.NewRouterMiddleware().Middleware
}
