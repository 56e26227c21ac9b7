package catalog

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/drblury/shardwire/internal/runtime/diagnostics"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/intents"
)

// Entry is one (handler, event) pair discovered by Scan.
type Entry struct {
	Handler string
	Module  string
	Event   events.Category
	Intents intents.Intents
	Func    any
}

// Catalog is the read-only result of Scan. It is safe to share between
// goroutines without locking.
type Catalog struct {
	module  string
	entries []Entry
}

// Module returns the name of the scanned module.
func (c *Catalog) Module() string {
	if c == nil {
		return ""
	}
	return c.module
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns a copy of the entries in discovery order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Handlers returns the distinct handler names in discovery order.
func (c *Catalog) Handlers() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(c.entries))
	var names []string
	for _, e := range c.entries {
		if _, ok := seen[e.Handler]; ok {
			continue
		}
		seen[e.Handler] = struct{}{}
		names = append(names, e.Handler)
	}
	return names
}

// Events returns the distinct categories handled, in discovery order.
func (c *Catalog) Events() []events.Category {
	if c == nil {
		return nil
	}
	seen := make(map[events.Category]struct{})
	var out []events.Category
	for _, e := range c.entries {
		if _, ok := seen[e.Event]; ok {
			continue
		}
		seen[e.Event] = struct{}{}
		out = append(out, e.Event)
	}
	return out
}

// Scan reads every declaration of m into a Catalog. It never invokes a
// handler.
//
// A malformed declaration or marker is reported to sink and skipped; the rest
// of the module is still scanned. Only a module that cannot be read at all
// fails the scan, with an error wrapping ErrLoadFailure.
//
// Handlers without an explicit Name are identified by their symbol name.
// Closures created from the same function literal share a symbol, so give
// them distinct names if they must be wired separately.
func Scan(m Module, sink diagnostics.Sink) (*Catalog, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %w", errspkg.ErrLoadFailure, errspkg.ErrModuleRequired)
	}
	if sink == nil {
		sink = diagnostics.Discard
	}

	decls, err := m.Declarations()
	if err != nil {
		return nil, fmt.Errorf("%w: module %s: %w", errspkg.ErrLoadFailure, m.ModuleName(), err)
	}

	c := &Catalog{module: m.ModuleName()}
	bound := make(map[string]uintptr)

	malformed := func(handler string, event events.Category, cause error) {
		sink.Report(diagnostics.Diagnostic{
			Kind:    diagnostics.KindMalformedDeclaration,
			Module:  c.module,
			Handler: handler,
			Event:   string(event),
			Err:     fmt.Errorf("%w: %w", errspkg.ErrMalformedDeclaration, cause),
		})
	}

	for _, d := range decls {
		name, pc, err := identify(d)
		if err != nil {
			malformed(name, "", err)
			continue
		}
		if prev, ok := bound[name]; ok && prev != pc {
			malformed(name, "", errspkg.ErrDuplicateHandlerName)
			continue
		}
		bound[name] = pc

		if len(d.Markers) == 0 {
			malformed(name, "", errspkg.ErrMarkerRequired)
			continue
		}
		for _, mk := range d.Markers {
			if err := validateMarker(mk); err != nil {
				malformed(name, mk.Event, err)
				continue
			}
			c.entries = append(c.entries, Entry{
				Handler: name,
				Module:  c.module,
				Event:   mk.Event,
				Intents: mk.Intents,
				Func:    d.Handler,
			})
		}
	}

	return c, nil
}

func identify(d Declaration) (string, uintptr, error) {
	name := d.Name
	if d.Handler == nil {
		return name, 0, errspkg.ErrHandlerRequired
	}
	v := reflect.ValueOf(d.Handler)
	if v.Kind() != reflect.Func {
		if name == "" {
			name = fmt.Sprintf("%T", d.Handler)
		}
		return name, 0, errspkg.ErrHandlerNotFunc
	}
	if v.IsNil() {
		return name, 0, errspkg.ErrHandlerRequired
	}
	pc := v.Pointer()
	if name == "" {
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		} else {
			name = fmt.Sprintf("handler@%x", pc)
		}
	}
	return name, pc, nil
}

func validateMarker(m Marker) error {
	if m.Event == "" {
		return errspkg.ErrEventRequired
	}
	if !events.Known(m.Event) {
		return fmt.Errorf("%w: %q", errspkg.ErrUnknownEvent, m.Event)
	}
	if !m.Intents.Valid() {
		return fmt.Errorf("%w: %s", errspkg.ErrUnknownIntents, m.Intents.Unknown())
	}
	return nil
}
