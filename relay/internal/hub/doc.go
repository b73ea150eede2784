// Package hub implements the WebSocket fan-out that relays configuration
// frames between connected SDK instances. Each inbound frame is stored as
// the latest for its event name and forwarded to every other client; new
// clients receive the stored frames on connect so they converge immediately.
package hub
