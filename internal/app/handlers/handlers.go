// Package handlers holds the bot's own gateway handlers and prefix commands.
// Importing it registers them with the default catalog and command registry.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/commands"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/gateway"
	"github.com/drblury/shardwire/internal/runtime/intents"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
)

var logger atomic.Pointer[loggingpkg.ServiceLogger]

// SetLogger routes handler logs to l.
func SetLogger(l loggingpkg.ServiceLogger) {
	l = loggingpkg.Component(l, "handlers")
	logger.Store(&l)
}

func log() loggingpkg.ServiceLogger {
	if l := logger.Load(); l != nil {
		return *l
	}
	return loggingpkg.Nop()
}

// Stats counts guild messages seen since start.
type Stats struct {
	mu     sync.Mutex
	guilds map[string]int
	total  int
}

func (s *Stats) add(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guilds == nil {
		s.guilds = make(map[string]int)
	}
	s.guilds[guildID]++
	s.total++
}

// Snapshot returns the total and the per-guild counts.
func (s *Stats) Snapshot() (int, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.guilds))
	for k, v := range s.guilds {
		out[k] = v
	}
	return s.total, out
}

var messages = &Stats{}

func init() {
	catalog.Register(catalog.Declaration{
		Name:    "handlers.onReady",
		Handler: onReady,
		Markers: []catalog.Marker{catalog.On(events.Ready, intents.None)},
	})
	catalog.Register(catalog.Declaration{
		Name:    "handlers.onGuildCreate",
		Handler: onGuildCreate,
		Markers: []catalog.Marker{catalog.On(events.GuildCreated, intents.Guilds)},
	})
	catalog.Register(catalog.Declaration{
		Name:    "handlers.countMessage",
		Handler: countMessage,
		Markers: []catalog.Marker{catalog.On(events.MessageCreated, intents.GuildMessages|intents.MessageContent)},
	})
	catalog.Register(catalog.Declaration{
		Name:    "handlers.onMemberAdded",
		Handler: onMemberAdded,
		Markers: []catalog.Marker{catalog.On(events.MemberAdded, intents.GuildMembers)},
	})
	catalog.Register(catalog.Declaration{
		Name:    "handlers.onCommandErrored",
		Handler: onCommandErrored,
		Markers: []catalog.Marker{catalog.On(events.CommandErrored, intents.None)},
	})

	commands.MustRegister(commands.Command{
		Name:        "ping",
		Description: "Replies with pong.",
		Run:         ping,
	})
	commands.MustRegister(commands.Command{
		Name:        "echo",
		Aliases:     []string{"say"},
		Description: "Repeats its arguments.",
		Run:         echo,
	})
	commands.MustRegister(commands.Command{
		Name:        "stats",
		Description: "Shows how many messages were seen.",
		Run:         stats,
	})
	commands.MustRegister(commands.Command{
		Name:        "help",
		Description: "Lists the available commands.",
		Run:         help,
	})
}

func onReady(ctx context.Context, evt *events.ReadyEvent) error {
	log().Info("Session ready", loggingpkg.LogFields{
		"session_id": evt.SessionID,
		"user":       evt.User.Username,
		"shard":      evt.Shard[0],
		"guilds":     len(evt.Guilds),
	})
	return nil
}

func onGuildCreate(ctx context.Context, evt *events.GuildCreateEvent) error {
	log().Debug("Guild available", loggingpkg.LogFields{
		"guild_id": evt.ID,
		"name":     evt.Name,
		"members":  evt.MemberCount,
	})
	return nil
}

func countMessage(ctx context.Context, evt *events.MessageCreateEvent) error {
	if evt.Author.Bot {
		return nil
	}
	messages.add(evt.GuildID)
	return nil
}

func onMemberAdded(ctx context.Context, evt *events.MemberAddEvent) error {
	log().Info("Member joined", loggingpkg.LogFields{
		"guild_id": evt.GuildID,
		"user_id":  evt.User.ID,
		"username": evt.User.Username,
	})
	return nil
}

func onCommandErrored(ctx context.Context, evt *events.CommandErroredEvent) error {
	if !errors.Is(evt.Err, errspkg.ErrCommandNotFound) {
		log().Error("Command failed", evt.Err, loggingpkg.LogFields{
			"command":  evt.Command,
			"shard_id": evt.ShardID,
		})
		return nil
	}
	shard, ok := gateway.ShardFromContext(ctx)
	if !ok {
		return nil
	}
	return shard.Reply(ctx, evt.Message, fmt.Sprintf("Unknown command %q. Try %shelp.", evt.Command, evt.Prefix))
}

func ping(ctx *commands.Context) error {
	return ctx.Reply("pong")
}

func echo(ctx *commands.Context) error {
	if len(ctx.Invocation.Args) == 0 {
		return errors.New("echo: nothing to repeat")
	}
	return ctx.Reply(strings.Join(ctx.Invocation.Args, " "))
}

func stats(ctx *commands.Context) error {
	total, guilds := messages.Snapshot()
	return ctx.Reply(fmt.Sprintf("%d messages in %d guilds", total, len(guilds)))
}

func help(ctx *commands.Context) error {
	cmds := commands.DefaultRegistry.Commands()
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, fmt.Sprintf("%s%s: %s", ctx.Invocation.Prefix, cmd.Name, cmd.Description))
	}
	return ctx.Reply(strings.Join(lines, "\n"))
}
