// Package commands layers a prefix command extension on each gateway shard.
// An extension watches its shard's MessageCreated slot, parses messages that
// start with a configured prefix, runs the matching command and reports the
// outcome on its own CommandExecuted and CommandErrored slots.
package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
)

// Command is one prefix command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Run         func(ctx *Context) error
}

// Registry maps command names and aliases to commands. Lookups are
// case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	names    []string
}

// DefaultRegistry is populated by Register, usually from init functions.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds cmd. A name or alias already in use is rejected as a whole.
func (r *Registry) Register(cmd Command) error {
	name := normalise(cmd.Name)
	if name == "" {
		return errspkg.ErrCommandNameRequired
	}
	if cmd.Run == nil {
		return fmt.Errorf("%s: %w", name, errspkg.ErrCommandRunRequired)
	}

	keys := []string{name}
	for _, alias := range cmd.Aliases {
		if a := normalise(alias); a != "" && a != name {
			keys = append(keys, a)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if _, exists := r.commands[k]; exists {
			return fmt.Errorf("%q: %w", k, errspkg.ErrCommandExists)
		}
	}
	stored := cmd
	stored.Name = name
	for _, k := range keys {
		r.commands[k] = &stored
	}
	r.names = append(r.names, name)
	return nil
}

// Lookup finds a command by name or alias.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[normalise(name)]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// Commands returns every registered command sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	sort.Strings(names)
	out := make([]Command, 0, len(names))
	for _, n := range names {
		out = append(out, *r.commands[n])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Register adds cmd to DefaultRegistry.
func Register(cmd Command) error {
	return DefaultRegistry.Register(cmd)
}

// MustRegister is Register for init functions; it panics on error.
func MustRegister(cmd Command) {
	if err := Register(cmd); err != nil {
		panic(err)
	}
}

func normalise(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
