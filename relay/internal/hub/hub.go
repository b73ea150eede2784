package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telemetrykit/cfgsync/pkg/metrics"
	"github.com/telemetrykit/cfgsync/pkg/relaybus"
	"github.com/telemetrykit/cfgsync/pkg/types"
	"github.com/telemetrykit/cfgsync/relay/internal/store"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize bounds one inbound frame. Config documents are small;
	// anything past this is a misbehaving client.
	maxFrameSize = 1 << 20

	// sendBufSize is the per-client outgoing frame buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub relays configuration frames between connected SDK instances: a frame
// received from one client is stored as the latest for its event name and
// fanned out to every other client. On connect, the stored frames are
// replayed so a freshly started instance converges immediately.
type Hub struct {
	store *store.Store

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected SDK instance.
type client struct {
	conn   *websocket.Conn
	origin string

	// mu guards send against the shutdown close: fan-outs run concurrently
	// (one per reading client), so an unguarded close would race a send.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues data for the write pump. Returns false when the client is
// shut down or its buffer is full.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once. Safe to call from any
// goroutine, any number of times.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// New creates a Hub backed by st.
func New(st *store.Store) *Hub {
	return &Hub{
		store:   st,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the
// instance: replays the latest stored frames, then relays until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	origin := r.Header.Get(relaybus.OriginHeader)
	if origin == "" {
		origin = r.RemoteAddr
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		origin: origin,
	}
	h.register(c)
	defer h.unregister(c)

	// Replay the latest frame per event name so the instance has the
	// current configuration right away. Frames this instance originated
	// are skipped — it already has them.
	for _, e := range h.store.List() {
		if e.Frame.Ns == origin {
			continue
		}
		if data, err := types.EncodeFrame(e.Frame); err == nil {
			c.trySend(data)
		}
	}

	go c.writePump()
	h.readPump(c) // blocks until connection closes
}

// Broadcast stores f and fans it out to every connected instance except the
// frame's origin. Used by the server when the canonical document changes.
func (h *Hub) Broadcast(f types.Frame) {
	h.store.Put(f)
	h.fanOut(f, nil)
}

// Count returns the number of currently connected instances.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.RelayClients.Inc()
	slog.Info("hub: instance connected", "origin", c.origin)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	c.shutdown()
	if ok {
		metrics.RelayClients.Dec()
		slog.Info("hub: instance disconnected", "origin", c.origin)
	}
}

// fanOut delivers f to every client except from and except clients whose
// origin matches the frame's.
func (h *Hub) fanOut(f types.Frame, from *client) {
	data, err := types.EncodeFrame(f)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c == from || c.origin == f.Ns {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			// Shut down or buffer full — disconnect it.
			h.unregister(c)
		}
	}
	metrics.RelayEventsTotal.Inc()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.shutdown()
	}
}

// readPump parses inbound frames, stores them, and relays them to the other
// clients. Blocks until the connection closes.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck

		f, err := types.DecodeFrame(data)
		if err != nil {
			slog.Warn("hub: discarding malformed frame", "origin", c.origin, "err", err)
			continue
		}
		if f.Ns == "" {
			f.Ns = c.origin
		}
		h.store.Put(f)
		h.fanOut(f, c)
	}
}

// writePump drains the client's send channel and forwards frames to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
