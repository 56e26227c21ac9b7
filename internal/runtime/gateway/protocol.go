package gateway

import (
	"fmt"
	"strconv"

	"github.com/drblury/shardwire/internal/runtime/intents"
	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
)

// Gateway opcodes carried in Envelope.Op. Only dispatches reach handlers.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpReconnect    = 7
	OpHeartbeatAck = 11
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "gateway"

// Topics names the transport topics the client talks to the gateway proxy on.
type Topics struct {
	Prefix string
}

// NewTopics returns the topic set for prefix, falling back to
// DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// Identify is where identify requests are published.
func (t Topics) Identify() string { return t.Prefix + ".identify" }

// Session carries the replies to identify requests.
func (t Topics) Session() string { return t.Prefix + ".session" }

// REST receives outbound API calls such as message creation.
func (t Topics) REST() string { return t.Prefix + ".rest" }

// Shard is the dispatch feed of one shard.
func (t Topics) Shard(id int) string { return t.Prefix + ".shard." + strconv.Itoa(id) }

// Identify is the session request. Intents is final for the session.
type Identify struct {
	Token      string          `json:"token"`
	Intents    intents.Intents `json:"intents"`
	ShardCount int             `json:"shard_count,omitempty"`
	Nonce      string          `json:"nonce"`
}

func (i Identify) String() string {
	return fmt.Sprintf("Identify{Intents: %s, ShardCount: %d, Nonce: %s}", i.Intents, i.ShardCount, i.Nonce)
}

// SessionReply answers an Identify. A non-empty Error is a rejection.
type SessionReply struct {
	Nonce      string `json:"nonce"`
	SessionID  string `json:"session_id,omitempty"`
	ShardCount int    `json:"shard_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Session is a negotiated gateway session. ShardCount is authoritative.
type Session struct {
	ID         string
	ShardCount int
	Intents    intents.Intents
}

// Envelope is one gateway frame as relayed on a shard topic.
type Envelope struct {
	Op   int                  `json:"op"`
	Type string               `json:"t,omitempty"`
	Seq  int64                `json:"s,omitempty"`
	Data jsoncodec.RawMessage `json:"d,omitempty"`
}

// CreateMessage is the outbound request published to the REST topic.
type CreateMessage struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
	ShardID   int    `json:"shard_id"`
}
