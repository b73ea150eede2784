// Package store manages the relay's in-memory latest-event state. It
// provides a thread-safe store of the most recent frame per event name with
// TTL eviction, replayed to newly connecting instances by the hub.
package store
