// Package intents models gateway intents: the subscription categories a gateway
// session is allowed to receive. Intents are fixed for the lifetime of a session,
// so the value handed to the connection factory must be final.
package intents

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Intents is a set of gateway intent bits.
type Intents uint64

const (
	Guilds                      Intents = 1 << 0
	GuildMembers                Intents = 1 << 1
	GuildModeration             Intents = 1 << 2
	GuildExpressions            Intents = 1 << 3
	GuildIntegrations           Intents = 1 << 4
	GuildWebhooks               Intents = 1 << 5
	GuildInvites                Intents = 1 << 6
	GuildVoiceStates            Intents = 1 << 7
	GuildPresences              Intents = 1 << 8
	GuildMessages               Intents = 1 << 9
	GuildMessageReactions       Intents = 1 << 10
	GuildMessageTyping          Intents = 1 << 11
	DirectMessages              Intents = 1 << 12
	DirectMessageReactions      Intents = 1 << 13
	DirectMessageTyping         Intents = 1 << 14
	MessageContent              Intents = 1 << 15
	GuildScheduledEvents        Intents = 1 << 16
	AutoModerationConfiguration Intents = 1 << 20
	AutoModerationExecution     Intents = 1 << 21
	GuildMessagePolls           Intents = 1 << 24
	DirectMessagePolls          Intents = 1 << 25
)

// None is the empty intent set. It is a valid requirement for handlers that
// only need events every session receives (READY, for example).
const None Intents = 0

// Privileged intents must be enabled for the application before a session may
// request them.
const Privileged = GuildMembers | GuildPresences | MessageContent

var named = []struct {
	bit  Intents
	name string
}{
	{Guilds, "Guilds"},
	{GuildMembers, "GuildMembers"},
	{GuildModeration, "GuildModeration"},
	{GuildExpressions, "GuildExpressions"},
	{GuildIntegrations, "GuildIntegrations"},
	{GuildWebhooks, "GuildWebhooks"},
	{GuildInvites, "GuildInvites"},
	{GuildVoiceStates, "GuildVoiceStates"},
	{GuildPresences, "GuildPresences"},
	{GuildMessages, "GuildMessages"},
	{GuildMessageReactions, "GuildMessageReactions"},
	{GuildMessageTyping, "GuildMessageTyping"},
	{DirectMessages, "DirectMessages"},
	{DirectMessageReactions, "DirectMessageReactions"},
	{DirectMessageTyping, "DirectMessageTyping"},
	{MessageContent, "MessageContent"},
	{GuildScheduledEvents, "GuildScheduledEvents"},
	{AutoModerationConfiguration, "AutoModerationConfiguration"},
	{AutoModerationExecution, "AutoModerationExecution"},
	{GuildMessagePolls, "GuildMessagePolls"},
	{DirectMessagePolls, "DirectMessagePolls"},
}

// All is every intent bit known to this package.
var All = func() Intents {
	var all Intents
	for _, n := range named {
		all |= n.bit
	}
	return all
}()

// Union returns the union of all supplied sets. Union of nothing is None.
func Union(sets ...Intents) Intents {
	var out Intents
	for _, s := range sets {
		out |= s
	}
	return out
}

// Union returns i combined with others.
func (i Intents) Union(others ...Intents) Intents {
	return i | Union(others...)
}

// Has reports whether every bit in want is present in i.
func (i Intents) Has(want Intents) bool {
	return i&want == want
}

// Valid reports whether i only contains known intent bits.
func (i Intents) Valid() bool {
	return i&^All == 0
}

// Unknown returns the bits of i that do not correspond to a known intent.
func (i Intents) Unknown() Intents {
	return i &^ All
}

// Privileged returns the privileged subset of i.
func (i Intents) Privileged() Intents {
	return i & Privileged
}

// Len returns the number of bits set.
func (i Intents) Len() int {
	return bits.OnesCount64(uint64(i))
}

// Names lists the names of the known bits in i, lowest bit first.
func (i Intents) Names() []string {
	names := make([]string, 0, i.Len())
	for _, n := range named {
		if i&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (i Intents) String() string {
	if i == None {
		return "None"
	}
	parts := i.Names()
	if unknown := i.Unknown(); unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(unknown)))
	}
	return strings.Join(parts, "|")
}

// Parse reads the "A|B|C" form produced by String, including the 0x fragment
// String uses for unknown bits. Names are case-insensitive, surrounding
// whitespace is ignored and "None" or "" yield None.
func Parse(s string) (Intents, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return None, nil
	}
	var out Intents
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if hex, ok := strings.CutPrefix(strings.ToLower(part), "0x"); ok {
			raw, err := strconv.ParseUint(hex, 16, 64)
			if err != nil {
				return None, fmt.Errorf("intents: bad bit mask %q", part)
			}
			out |= Intents(raw)
			continue
		}
		bit, ok := lookup(part)
		if !ok {
			return None, fmt.Errorf("intents: unknown intent %q", part)
		}
		out |= bit
	}
	return out, nil
}

func lookup(name string) (Intents, bool) {
	for _, n := range named {
		if strings.EqualFold(n.name, name) {
			return n.bit, true
		}
	}
	return None, false
}
