package commands

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
)

// DispatchKey is the subscription key extensions use on their shard's
// MessageCreated slot.
const DispatchKey = "commands.dispatch"

// Config configures the command extensions.
type Config struct {
	Prefixes []string
	// Debug enables the DebugGuildID restriction.
	Debug bool
	// DebugGuildID restricts commands to one guild in debug runs.
	DebugGuildID string
}

// Context is handed to Command.Run.
type Context struct {
	context.Context
	Shard      *gateway.Shard
	Message    events.Message
	Invocation Invocation
}

// Reply answers the invoking message through the shard's transport.
func (c *Context) Reply(content string) error {
	return c.Shard.Reply(c.Context, c.Message, content)
}

// Extension is the command target layered on one shard.
type Extension struct {
	shard        *gateway.Shard
	registry     *Registry
	parser       *PrefixParser
	debugGuildID string
	logger       loggingpkg.ServiceLogger

	slots    *events.SlotSet
	executed *events.TypedSlot[*events.CommandExecutedEvent]
	errored  *events.TypedSlot[*events.CommandErroredEvent]
}

func newExtension(shard *gateway.Shard, cfg Config, registry *Registry, logger loggingpkg.ServiceLogger) *Extension {
	ext := &Extension{
		shard:    shard,
		registry: registry,
		parser:   NewPrefixParser(cfg.Prefixes...),
		executed: events.NewSlot[*events.CommandExecutedEvent](events.CommandExecuted),
		errored:  events.NewSlot[*events.CommandErroredEvent](events.CommandErrored),
	}
	if cfg.Debug {
		ext.debugGuildID = cfg.DebugGuildID
	}
	ext.logger = logger.With(loggingpkg.LogFields{"target": ext.TargetID()})
	ext.slots = events.NewSlotSet(ext.executed, ext.errored)
	return ext
}

// TargetID is the shard's id with a "/commands" suffix.
func (e *Extension) TargetID() string { return e.shard.TargetID() + "/commands" }

func (e *Extension) Categories() []events.Category { return e.slots.Categories() }

func (e *Extension) Slot(c events.Category) (events.Slot, bool) { return e.slots.Slot(c) }

func (e *Extension) Seal() { e.slots.Seal() }

// Shard returns the shard the extension is layered on.
func (e *Extension) Shard() *gateway.Shard { return e.shard }

// UseCommands layers one Extension on every shard of client. It must be
// called before the client starts. A nil registry means DefaultRegistry.
func UseCommands(client *gateway.ShardedClient, cfg Config, registry *Registry, logger loggingpkg.ServiceLogger) ([]*Extension, error) {
	if registry == nil {
		registry = DefaultRegistry
	}
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	logger = loggingpkg.Component(logger, "commands")

	shards := client.Shards()
	exts := make([]*Extension, 0, len(shards))
	for _, shard := range shards {
		ext := newExtension(shard, cfg, registry, logger)

		slot, ok := shard.Slot(events.MessageCreated)
		if !ok {
			return nil, fmt.Errorf("%s: no %s slot", shard.TargetID(), events.MessageCreated)
		}
		if _, err := slot.Subscribe(DispatchKey, ext.handleMessage); err != nil {
			return nil, fmt.Errorf("%s: %w", ext.TargetID(), err)
		}
		if err := client.AddExtension(ext); err != nil {
			return nil, err
		}
		exts = append(exts, ext)
	}

	logger.Info("Command extensions attached", loggingpkg.LogFields{
		"shards":   len(exts),
		"commands": registry.Len(),
		"prefixes": NewPrefixParser(cfg.Prefixes...).Prefixes(),
	})
	return exts, nil
}

func (e *Extension) handleMessage(ctx context.Context, evt *events.MessageCreateEvent) error {
	if evt.Author.Bot {
		return nil
	}
	if e.debugGuildID != "" && evt.GuildID != e.debugGuildID {
		return nil
	}
	inv, ok := e.parser.Parse(evt.Content)
	if !ok {
		return nil
	}

	cmd, found := e.registry.Lookup(inv.Name)
	if !found {
		return e.errored.Fire(ctx, e.erroredEvent(inv, evt.Message, fmt.Errorf("%w: %q", errspkg.ErrCommandNotFound, inv.Name)))
	}

	runErr := e.run(ctx, cmd, inv, evt.Message)
	if runErr != nil {
		e.logger.Debug("Command failed", loggingpkg.LogFields{
			"command": cmd.Name,
			"error":   runErr.Error(),
		})
		return e.errored.Fire(ctx, e.erroredEvent(inv, evt.Message, runErr))
	}
	return e.executed.Fire(ctx, &events.CommandExecutedEvent{
		Command: cmd.Name,
		Prefix:  inv.Prefix,
		Args:    inv.Args,
		Message: evt.Message,
		ShardID: e.shard.ID(),
	})
}

func (e *Extension) run(ctx context.Context, cmd Command, inv Invocation, msg events.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()
	return cmd.Run(&Context{Context: ctx, Shard: e.shard, Message: msg, Invocation: inv})
}

func (e *Extension) erroredEvent(inv Invocation, msg events.Message, err error) *events.CommandErroredEvent {
	return &events.CommandErroredEvent{
		Command: inv.Name,
		Prefix:  inv.Prefix,
		Args:    inv.Args,
		Message: msg,
		ShardID: e.shard.ID(),
		Err:     err,
	}
}
