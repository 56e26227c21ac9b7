package commands

import (
	"sort"
	"strings"
)

// DefaultPrefixes is used when no prefix is configured.
var DefaultPrefixes = []string{">>"}

// Invocation is a parsed command message.
type Invocation struct {
	Prefix string
	Name   string
	Args   []string
}

// PrefixParser recognises messages starting with one of its prefixes.
type PrefixParser struct {
	prefixes []string
}

// NewPrefixParser returns a parser for prefixes, or DefaultPrefixes when none
// are given. Longer prefixes are tried first so ">>" wins over ">".
func NewPrefixParser(prefixes ...string) *PrefixParser {
	var cleaned []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultPrefixes...)
	}
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	return &PrefixParser{prefixes: cleaned}
}

func (p *PrefixParser) Prefixes() []string {
	out := make([]string, len(p.prefixes))
	copy(out, p.prefixes)
	return out
}

// Parse splits content into prefix, lower-cased command name and
// whitespace-separated arguments. It reports false for content that is not a
// command.
func (p *PrefixParser) Parse(content string) (Invocation, bool) {
	content = strings.TrimSpace(content)
	for _, prefix := range p.prefixes {
		if !strings.HasPrefix(content, prefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(content, prefix))
		if len(fields) == 0 {
			return Invocation{}, false
		}
		return Invocation{
			Prefix: prefix,
			Name:   strings.ToLower(fields[0]),
			Args:   fields[1:],
		}, true
	}
	return Invocation{}, false
}
