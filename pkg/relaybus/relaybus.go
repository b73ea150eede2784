package relaybus

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telemetrykit/cfgsync/pkg/bus"
	"github.com/telemetrykit/cfgsync/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	writeTimeout      = 10 * time.Second
	defaultBufferSize = 64

	// OriginHeader carries the instance identity on the dial request so the
	// hub can avoid echoing frames back to their sender.
	OriginHeader = "X-Cfgsync-Origin"
)

// Config configures a relay connection.
type Config struct {
	// URL is the relay websocket endpoint (ws://host:port/ws).
	URL string

	// Origin identifies this instance to the hub. Derived when empty.
	Origin string

	// APIKey, when non-empty, is sent in APIKeyHeader on the dial request.
	APIKey string

	// APIKeyHeader is the header name the key travels in.
	// Defaults to "x-cfgsync-key".
	APIKeyHeader string

	// BufferSize is the maximum number of outgoing frames held while the
	// relay is unreachable. Defaults to 64.
	BufferSize int
}

// Relay implements bus.Bus across process boundaries: publishes are
// delivered to local subscribers immediately and enqueued for the relay
// server, which fans them out to every other connected instance. Incoming
// frames are dispatched to local subscribers.
//
// Publish is non-blocking; when the buffer is full the oldest frame is
// evicted. Run must be called in a goroutine to drain the buffer and handle
// reconnection.
type Relay struct {
	cfg    Config
	local  *bus.Memory
	buf    chan types.Frame
	dialFn dialFunc // injectable for tests
}

// dialFunc is the function signature used to open a relay connection.
// Abstracted so tests can inject an in-memory pipe.
type dialFunc func(ctx context.Context, url string, hdr http.Header) (*websocket.Conn, error)

// New creates a Relay using the given configuration.
func New(cfg Config) *Relay {
	if cfg.Origin == "" {
		cfg.Origin = fmt.Sprintf("relay-%08x", rand.Uint32()) //nolint:gosec // uniqueness only
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "x-cfgsync-key"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &Relay{
		cfg:    cfg,
		local:  bus.NewMemory(),
		buf:    make(chan types.Frame, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// Origin returns the instance identity frames are tagged with.
func (r *Relay) Origin() string { return r.cfg.Origin }

// Subscribe implements bus.Bus.
func (r *Relay) Subscribe(name, namespace string, h bus.Handler) {
	r.local.Subscribe(name, namespace, h)
}

// Unsubscribe implements bus.Bus.
func (r *Relay) Unsubscribe(name, namespace string) {
	r.local.Unsubscribe(name, namespace)
}

// Publish implements bus.Bus: local subscribers see the event synchronously,
// and a frame is enqueued for the relay. If the buffer is full the oldest
// frame is evicted to make room.
func (r *Relay) Publish(evt types.OutboundEvent) error {
	if err := r.local.Publish(evt); err != nil {
		return err
	}

	f := types.Frame{Ns: r.cfg.Origin, Event: evt}
	select {
	case r.buf <- f:
	default:
		// Buffer full — drop the oldest frame, keep the newest.
		select {
		case <-r.buf:
			slog.Warn("relaybus: buffer full, evicted oldest frame",
				"event", evt.Name, "buffer_cap", cap(r.buf))
		default:
		}
		select {
		case r.buf <- f:
		default:
			// A concurrent publisher refilled the slot; drop this frame
			// rather than block the caller.
			slog.Warn("relaybus: buffer full, dropped frame",
				"event", evt.Name, "buffer_cap", cap(r.buf))
		}
	}
	return nil
}

// Run connects to the relay, drains the outgoing buffer, and dispatches
// incoming frames. It reconnects with exponential backoff when the
// connection is lost. Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := r.dialFn(ctx, r.cfg.URL, r.dialHeader())
		if err != nil {
			wait := bo.next()
			slog.Error("relaybus: dial failed, will retry",
				"url", r.cfg.URL, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("relaybus: connected", "url", r.cfg.URL, "origin", r.cfg.Origin)
		bo.reset()

		err = r.exchange(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("relaybus: connection lost, will reconnect",
			"url", r.cfg.URL, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// exchange runs the send and receive sides of one connection until either
// fails or ctx is cancelled.
func (r *Relay) exchange(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go r.readPump(conn, readErr)

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return nil

		case err := <-readErr:
			return fmt.Errorf("relaybus: read: %w", err)

		case f := <-r.buf:
			data, err := types.EncodeFrame(f)
			if err != nil {
				slog.Warn("relaybus: dropping unencodable frame",
					"event", f.Event.Name, "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// Put the frame back if there's room; the next connection
				// delivers it.
				select {
				case r.buf <- f:
				default:
				}
				return fmt.Errorf("relaybus: write: %w", err)
			}
		}
	}
}

// readPump dispatches incoming frames to local subscribers until the
// connection fails.
func (r *Relay) readPump(conn *websocket.Conn, readErr chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		f, err := types.DecodeFrame(data)
		if err != nil {
			slog.Warn("relaybus: discarding malformed frame", "err", err)
			continue
		}
		if f.Ns == r.cfg.Origin {
			// The hub excludes the origin, but guard anyway: local
			// subscribers already saw this event at Publish time.
			continue
		}
		r.local.Publish(f.Event) //nolint:errcheck
	}
}

func (r *Relay) dialHeader() http.Header {
	hdr := http.Header{}
	hdr.Set(OriginHeader, r.cfg.Origin)
	if r.cfg.APIKey != "" {
		hdr.Set(r.cfg.APIKeyHeader, r.cfg.APIKey)
	}
	return hdr
}

// defaultDial opens a websocket connection to url.
func defaultDial(ctx context.Context, url string, hdr http.Header) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, hdr)
	if err != nil {
		return nil, fmt.Errorf("relaybus: dial %s: %w", url, err)
	}
	return conn, nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
