// Package relaybus bridges the in-process event bus across process
// boundaries via the relay server.
//
// A Relay satisfies bus.Bus, so an engine wired to one synchronizes with
// peers in other processes exactly as it would with in-process peers:
// Publish delivers locally and enqueues a frame for the hub; frames arriving
// from the hub are dispatched to local subscribers. The connection is
// maintained by Run with truncated exponential backoff, and outgoing frames
// survive short outages in a bounded buffer that evicts oldest-first.
package relaybus
