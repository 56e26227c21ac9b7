package runtime

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/diagnostics"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
	"github.com/drblury/shardwire/internal/runtime/telemetry"
)

// RegistrationReport counts what one Register call did.
type RegistrationReport struct {
	Target string `json:"target"`
	// Wired entries were subscribed by this call.
	Wired int `json:"wired"`
	// Skipped entries name a category the target does not expose.
	Skipped int `json:"skipped"`
	// Duplicate entries were already wired to this target.
	Duplicate int `json:"duplicate"`
	// Failed entries were reported as diagnostics.
	Failed int `json:"failed"`
}

// Add sums two reports. The target of r is kept.
func (r RegistrationReport) Add(other RegistrationReport) RegistrationReport {
	r.Wired += other.Wired
	r.Skipped += other.Skipped
	r.Duplicate += other.Duplicate
	r.Failed += other.Failed
	return r
}

func (r RegistrationReport) fields() loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"target":    r.Target,
		"wired":     r.Wired,
		"skipped":   r.Skipped,
		"duplicate": r.Duplicate,
		"failed":    r.Failed,
	}
}

type wiring struct {
	handler string
	target  string
	event   events.Category
}

// Registrar subscribes catalog entries to targets. It remembers every
// (handler, target, category) it wired, so registering the same catalog on
// the same target again is a no-op.
type Registrar struct {
	sink    diagnostics.Sink
	logger  loggingpkg.ServiceLogger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu    sync.Mutex
	wired map[wiring]struct{}
}

// NewRegistrar returns an empty Registrar. Nil collaborators are replaced by
// no-op ones.
func NewRegistrar(sink diagnostics.Sink, logger loggingpkg.ServiceLogger, metrics *telemetry.Metrics) *Registrar {
	if sink == nil {
		sink = diagnostics.Discard
	}
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &Registrar{
		sink:    sink,
		logger:  loggingpkg.Component(logger, "registrar"),
		metrics: metrics,
		now:     time.Now,
		wired:   make(map[wiring]struct{}),
	}
}

// Register subscribes every entry of cat whose category target exposes.
// Entries for other categories are skipped. An entry whose handler does not
// fit the slot, or a target that already started, yields a diagnostic for
// that entry only; the rest are still wired.
func (r *Registrar) Register(cat *catalog.Catalog, target events.Target) (RegistrationReport, error) {
	if cat == nil {
		return RegistrationReport{}, errspkg.ErrCatalogRequired
	}
	if target == nil {
		return RegistrationReport{}, errspkg.ErrTargetRequired
	}

	id := target.TargetID()
	kind := targetKind(id)
	report := RegistrationReport{Target: id}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range cat.Entries() {
		slot, ok := target.Slot(entry.Event)
		if !ok {
			report.Skipped++
			r.metrics.Registration("skipped", kind)
			continue
		}

		key := wiring{handler: entry.Handler, target: id, event: entry.Event}
		if _, done := r.wired[key]; done {
			report.Duplicate++
			r.metrics.Registration("duplicate", kind)
			continue
		}

		added, err := slot.Subscribe(entry.Handler, entry.Func)
		if err != nil {
			report.Failed++
			r.metrics.Registration("failed", kind)
			r.report(entry, id, err)
			continue
		}
		r.wired[key] = struct{}{}
		if !added {
			report.Duplicate++
			r.metrics.Registration("duplicate", kind)
			continue
		}
		report.Wired++
		r.metrics.Registration("wired", kind)
		r.logger.Trace("Handler wired", loggingpkg.LogFields{
			"handler": entry.Handler,
			"target":  id,
			"event":   string(entry.Event),
		})
	}

	r.logger.Debug("Target registered", report.fields())
	return report, nil
}

func (r *Registrar) report(entry catalog.Entry, target string, err error) {
	d := diagnostics.Diagnostic{
		Kind:    diagnostics.KindSignatureMismatch,
		Module:  entry.Module,
		Handler: entry.Handler,
		Target:  target,
		Event:   string(entry.Event),
		Err:     err,
		At:      r.now(),
	}
	if errors.Is(err, errspkg.ErrTargetStarted) {
		d.Kind = diagnostics.KindLateRegistration
		d.Err = fmt.Errorf("%w: %w", errspkg.ErrLateRegistration, err)
	} else if !errors.Is(err, errspkg.ErrSignatureMismatch) {
		d.Err = fmt.Errorf("%w: %w", errspkg.ErrSignatureMismatch, err)
	}
	r.metrics.Diagnostic(string(d.Kind))
	r.sink.Report(d)
}

// Wired reports whether handler is subscribed to event on target.
func (r *Registrar) Wired(handler, target string, event events.Category) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.wired[wiring{handler: handler, target: target, event: event}]
	return ok
}

// Len returns the number of wired triples.
func (r *Registrar) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wired)
}

// targetKind turns "shard-3" into "shard" and "shard-3/commands" into
// "commands" for metric labels.
func targetKind(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return id
}
