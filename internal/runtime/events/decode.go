package events

import (
	"fmt"

	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
)

var dispatchTable = map[string]struct {
	category Category
	newValue func() Payload
}{
	"READY":                {Ready, func() Payload { return &ReadyEvent{} }},
	"GUILD_CREATE":         {GuildCreated, func() Payload { return &GuildCreateEvent{} }},
	"MESSAGE_CREATE":       {MessageCreated, func() Payload { return &MessageCreateEvent{} }},
	"MESSAGE_UPDATE":       {MessageUpdated, func() Payload { return &MessageUpdateEvent{} }},
	"MESSAGE_DELETE":       {MessageDeleted, func() Payload { return &MessageDeleteEvent{} }},
	"GUILD_MEMBER_ADD":     {MemberAdded, func() Payload { return &MemberAddEvent{} }},
	"GUILD_MEMBER_REMOVE":  {MemberRemoved, func() Payload { return &MemberRemoveEvent{} }},
	"MESSAGE_REACTION_ADD": {ReactionAdded, func() Payload { return &ReactionAddEvent{} }},
}

// UnknownDispatchError is returned by Decode for dispatch names with no
// category. Gateways add dispatch types over time, so callers usually log and
// drop these.
type UnknownDispatchError struct {
	Name string
}

func (e *UnknownDispatchError) Error() string {
	return fmt.Sprintf("events: unknown dispatch %q", e.Name)
}

// CategoryForDispatch maps a gateway dispatch name such as "MESSAGE_CREATE" to
// its category.
func CategoryForDispatch(name string) (Category, bool) {
	entry, ok := dispatchTable[name]
	return entry.category, ok
}

// Decode turns the raw "d" object of a dispatch into its typed payload.
func Decode(name string, data []byte) (Payload, error) {
	entry, ok := dispatchTable[name]
	if !ok {
		return nil, &UnknownDispatchError{Name: name}
	}
	payload := entry.newValue()
	if len(data) == 0 {
		return payload, nil
	}
	if err := jsoncodec.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", name, err)
	}
	return payload, nil
}
