package sanitize

import (
	"github.com/telemetrykit/cfgsync/pkg/types"
)

// MaxLevels is the default recursion depth for protected-key filtering.
// Levels are numbered from 1; subtrees nested deeper than MaxLevels are
// copied verbatim without further filtering.
const MaxLevels = 5

// DefaultRules returns the default protected-key set. These are the
// identity- and secret-bearing fields a peer instance must never be able to
// override remotely. Callers receive a fresh map they may extend.
func DefaultRules() map[string]bool {
	return map[string]bool{
		"instrumentationKey": true,
		"connectionString":   true,
		"endpointUrl":        true,
	}
}

// Sanitize returns a copy of cfg with every protected key stripped, applying
// rules recursively down to MaxLevels. Returns nil when cfg or rules is nil.
func Sanitize(cfg types.ConfigSnapshot, rules map[string]bool) types.ConfigSnapshot {
	return SanitizeLevel(cfg, rules, 1, MaxLevels)
}

// SanitizeLevel filters cfg at the given nesting level. A key marked
// protected in rules is omitted from the output entirely, subtree included.
// Nested maps recurse with level+1 while level < maxLevel; beyond that the
// subtree is deep-copied unfiltered. Returns nil when cfg or rules is nil.
func SanitizeLevel(cfg types.ConfigSnapshot, rules map[string]bool, level, maxLevel int) types.ConfigSnapshot {
	if cfg == nil || rules == nil {
		return nil
	}

	out := make(types.ConfigSnapshot, len(cfg))
	for k, v := range cfg {
		if rules[k] {
			continue
		}
		if nested, ok := v.(types.ConfigSnapshot); ok && level < maxLevel {
			if sub := SanitizeLevel(nested, rules, level+1, maxLevel); sub != nil {
				out[k] = sub
			}
			continue
		}
		out[k] = types.CloneValue(v)
	}
	return out
}
