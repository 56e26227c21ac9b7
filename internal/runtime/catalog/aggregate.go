package catalog

import "github.com/drblury/shardwire/internal/runtime/intents"

// Aggregate returns the union of the intents of every entry in c. It is
// order-independent and returns intents.None for a nil or empty catalog.
func Aggregate(c *Catalog) intents.Intents {
	if c == nil {
		return intents.None
	}
	out := intents.None
	for _, e := range c.entries {
		out = out.Union(e.Intents)
	}
	return out
}
