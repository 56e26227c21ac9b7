// Package diagnostics carries the per-entry failures of the bootstrap: a bad
// declaration or a handler that cannot be wired to a target. These never abort
// startup; they are reported through a Sink and the bootstrap carries on.
package diagnostics

import (
	"fmt"
	"sync"
	"time"

	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindMalformedDeclaration Kind = "malformed_declaration"
	KindSignatureMismatch    Kind = "signature_mismatch"
	KindLateRegistration     Kind = "late_registration"
	KindLoadFailure          Kind = "load_failure"
	KindNegotiationFailure   Kind = "negotiation_failure"
)

// Diagnostic describes one recovered failure.
type Diagnostic struct {
	Kind    Kind
	Module  string
	Handler string
	Target  string
	Event   string
	Err     error
	At      time.Time
}

func (d Diagnostic) Error() string {
	subject := d.Handler
	if subject == "" {
		subject = d.Module
	}
	if d.Target != "" {
		subject += " on " + d.Target
	}
	if d.Event != "" {
		subject += " (" + d.Event + ")"
	}
	return fmt.Sprintf("%s: %s: %v", d.Kind, subject, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Fields renders the diagnostic as structured log fields.
func (d Diagnostic) Fields() loggingpkg.LogFields {
	fields := loggingpkg.LogFields{"kind": string(d.Kind)}
	if d.Module != "" {
		fields["module"] = d.Module
	}
	if d.Handler != "" {
		fields["handler"] = d.Handler
	}
	if d.Target != "" {
		fields["target"] = d.Target
	}
	if d.Event != "" {
		fields["event"] = d.Event
	}
	return fields
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Multi fans a diagnostic out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(d Diagnostic) {
		for _, s := range active {
			s.Report(d)
		}
	})
}

// LogSink writes each diagnostic as an error log line.
func LogSink(logger loggingpkg.ServiceLogger) Sink {
	return SinkFunc(func(d Diagnostic) {
		logger.Error("Handler diagnostic", d.Err, d.Fields())
	})
}

// ChannelSink forwards diagnostics to ch. Sends never block; a diagnostic that
// does not fit is dropped, so size the buffer for the expected volume.
func ChannelSink(ch chan<- Diagnostic) Sink {
	return SinkFunc(func(d Diagnostic) {
		select {
		case ch <- d:
		default:
		}
	})
}

// Collector keeps every diagnostic it receives.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(d Diagnostic) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// All returns a copy of the collected diagnostics in report order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// ByKind returns the collected diagnostics of kind k.
func (c *Collector) ByKind(k Kind) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.items {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
