// Package events defines the event categories a gateway session delivers, the
// payload carried by each, and the slot abstraction handlers subscribe to.
//
// Categories fall into two namespaces. Shards expose the gateway namespace
// (messages, members, guilds, reactions, READY); command extensions expose the
// command namespace. A handler written for one namespace is never offered to a
// target of the other.
package events

import "time"

// Category names one kind of event a target can deliver.
type Category string

// Gateway namespace.
const (
	Ready          Category = "Ready"
	GuildCreated   Category = "GuildCreated"
	MessageCreated Category = "MessageCreated"
	MessageUpdated Category = "MessageUpdated"
	MessageDeleted Category = "MessageDeleted"
	MemberAdded    Category = "MemberAdded"
	MemberRemoved  Category = "MemberRemoved"
	ReactionAdded  Category = "ReactionAdded"
)

// Command namespace.
const (
	CommandExecuted Category = "CommandExecuted"
	CommandErrored  Category = "CommandErrored"
)

// GatewayCategories lists the gateway namespace in a stable order.
var GatewayCategories = []Category{
	Ready, GuildCreated, MessageCreated, MessageUpdated, MessageDeleted,
	MemberAdded, MemberRemoved, ReactionAdded,
}

// CommandCategories lists the command namespace in a stable order.
var CommandCategories = []Category{CommandExecuted, CommandErrored}

// Known reports whether c belongs to either namespace.
func Known(c Category) bool {
	for _, k := range GatewayCategories {
		if k == c {
			return true
		}
	}
	for _, k := range CommandCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Payload is implemented by every event value delivered to handlers.
type Payload interface {
	Category() Category
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

type Member struct {
	User     User      `json:"user"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	GuildID   string    `json:"guild_id,omitempty"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyEvent is delivered once per shard when its session is live.
type ReadyEvent struct {
	SessionID string   `json:"session_id"`
	User      User     `json:"user"`
	Shard     [2]int   `json:"shard"`
	Guilds    []string `json:"guilds,omitempty"`
}

type GuildCreateEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

type MessageCreateEvent struct {
	Message
}

type MessageUpdateEvent struct {
	Message
}

type MessageDeleteEvent struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

type MemberAddEvent struct {
	Member
	GuildID string `json:"guild_id"`
}

type MemberRemoveEvent struct {
	User    User   `json:"user"`
	GuildID string `json:"guild_id"`
}

type ReactionAddEvent struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Emoji     string `json:"emoji"`
}

func (*ReadyEvent) Category() Category         { return Ready }
func (*GuildCreateEvent) Category() Category   { return GuildCreated }
func (*MessageCreateEvent) Category() Category { return MessageCreated }
func (*MessageUpdateEvent) Category() Category { return MessageUpdated }
func (*MessageDeleteEvent) Category() Category { return MessageDeleted }
func (*MemberAddEvent) Category() Category     { return MemberAdded }
func (*MemberRemoveEvent) Category() Category  { return MemberRemoved }
func (*ReactionAddEvent) Category() Category   { return ReactionAdded }

// CommandExecutedEvent is delivered after a command ran without error.
type CommandExecutedEvent struct {
	Command string   `json:"command"`
	Prefix  string   `json:"prefix"`
	Args    []string `json:"args,omitempty"`
	Message Message  `json:"message"`
	ShardID int      `json:"shard_id"`
}

// CommandErroredEvent is delivered when a command is unknown or its Run
// function returned an error.
type CommandErroredEvent struct {
	Command string   `json:"command"`
	Prefix  string   `json:"prefix"`
	Args    []string `json:"args,omitempty"`
	Message Message  `json:"message"`
	ShardID int      `json:"shard_id"`
	Err     error    `json:"-"`
}

func (*CommandExecutedEvent) Category() Category { return CommandExecuted }
func (*CommandErroredEvent) Category() Category  { return CommandErrored }
