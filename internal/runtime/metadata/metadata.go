// Package metadata holds the headers carried next to gateway traffic on the
// transport: which shard a dispatch belongs to, its sequence number and the
// correlation id used to tie identify requests to session replies.
package metadata

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Reserved header keys.
const (
	KeyCorrelationID = "correlation_id"
	KeyShardID       = "shardwire_shard_id"
	KeyShardCount    = "shardwire_shard_count"
	KeySequence      = "shardwire_sequence"
	KeyDispatchType  = "shardwire_dispatch_type"
	KeySessionID     = "shardwire_session_id"
)

// Metadata represents the headers carried alongside a gateway message.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// Int reads key as a base-10 integer.
func (m Metadata) Int(key string) (int, bool) {
	raw, ok := m[key]
	if !ok || raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WithInt returns a clone with key set to n.
func (m Metadata) WithInt(key string, n int) Metadata {
	return m.With(key, strconv.Itoa(n))
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// FromWatermill copies Watermill metadata.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// ToWatermill copies m into a Watermill metadata map.
func ToWatermill(m Metadata) message.Metadata {
	wm := make(message.Metadata, len(m))
	for k, v := range m {
		wm[k] = v
	}
	return wm
}
