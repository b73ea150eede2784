// Package bus defines the shared event channel configuration events travel
// on, plus the in-process implementation used when all SDK instances live in
// one process.
//
// Subscriptions are keyed by (event name, namespace). Publishing matches on
// the shared event name only, so instances interoperate on the name while
// each instance's teardown removes just its own listener via its namespace.
// Cross-process synchronization is provided by package relaybus, which
// implements the same Bus interface over a websocket connection.
package bus
