// Package catalog discovers handler declarations and reduces them to the
// intents a gateway session must request.
//
// A declaration pairs a handler function with one or more markers. Each
// marker names one event category and the intents that category needs, so a
// function serving both guild and direct messages carries two markers.
// Declarations live in a Module; the default module is filled from init
// functions through Register:
//
//	func init() {
//		catalog.Register(catalog.Declaration{
//			Handler: onMessage,
//			Markers: []catalog.Marker{
//				{Event: events.MessageCreated, Intents: intents.GuildMessages | intents.MessageContent},
//			},
//		})
//	}
package catalog

import (
	"sync"

	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/intents"
)

// Marker states what one event category requires of the session.
type Marker struct {
	Event   events.Category
	Intents intents.Intents
}

// On is shorthand for a Marker.
func On(event events.Category, in intents.Intents) Marker {
	return Marker{Event: event, Intents: in}
}

// Declaration binds a handler function to its markers. Name identifies the
// handler for de-duplication; it defaults to the function's symbol name.
type Declaration struct {
	Name    string
	Handler any
	Markers []Marker
}

// Module is a code unit that can enumerate its declarations without running
// any of the handlers.
type Module interface {
	ModuleName() string
	Declarations() ([]Declaration, error)
}

// Registry is a Module assembled at init time.
type Registry struct {
	name string

	mu    sync.RWMutex
	decls []Declaration
}

// DefaultRegistry collects the declarations of every imported handler package.
var DefaultRegistry = NewRegistry("default")

// NewRegistry creates an empty registry named name.
func NewRegistry(name string) *Registry {
	return &Registry{name: name}
}

func (r *Registry) ModuleName() string { return r.name }

// Register appends d. Validation is deferred to Scan so a bad declaration in
// one package cannot panic the process at init.
func (r *Registry) Register(d Declaration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Markers = append([]Marker(nil), d.Markers...)
	r.decls = append(r.decls, d)
}

func (r *Registry) Declarations() ([]Declaration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out, nil
}

// Len returns the number of registered declarations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decls)
}

// Register adds d to DefaultRegistry.
func Register(d Declaration) {
	DefaultRegistry.Register(d)
}

// Handle registers handler on DefaultRegistry with the given markers.
func Handle(handler any, markers ...Marker) {
	DefaultRegistry.Register(Declaration{Handler: handler, Markers: markers})
}

// Modules joins several modules into one; declarations keep module order.
func Modules(name string, modules ...Module) Module {
	return multiModule{name: name, modules: modules}
}

type multiModule struct {
	name    string
	modules []Module
}

func (m multiModule) ModuleName() string { return m.name }

func (m multiModule) Declarations() ([]Declaration, error) {
	var out []Declaration
	for _, mod := range m.modules {
		if mod == nil {
			continue
		}
		decls, err := mod.Declarations()
		if err != nil {
			return nil, err
		}
		out = append(out, decls...)
	}
	return out, nil
}
