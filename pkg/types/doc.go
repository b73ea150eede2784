// Package types defines shared Go types used by both SDK instances and the
// relay server. These are the canonical in-memory representations of
// configuration trees and sync events, separate from any host SDK schema.
//
// ConfigSnapshot is an alias for map[string]any (not a defined type) so that
// values decoded from JSON match it directly in type switches. Clone and
// Merge are the canonical deep-copy and deep-merge helpers; every component
// that hands a snapshot across a boundary clones it first so trees are never
// shared mutable state.
package types
