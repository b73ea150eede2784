package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// defaultTimeout bounds a single fetch attempt.
const defaultTimeout = 10 * time.Second

// OnComplete receives the result of one fetch attempt. autoSync is threaded
// through unchanged so the completion handler knows whether the fetched
// document should be re-broadcast.
type OnComplete func(status int, body string, autoSync bool)

// Sender is a full override of the fetch strategy. When configured it is
// solely responsible for retrieving url and invoking done.
type Sender func(ctx context.Context, url string, done OnComplete, autoSync bool)

// Adapter retrieves a configuration document over HTTP and delivers the raw
// response to a callback. Strategy selection order: the user override, then
// the strict strategy, then the lenient one. Failures at any point are
// swallowed — Send never panics into the caller, and done is simply not
// invoked when nothing usable came back.
type Adapter struct {
	override Sender
	client   *http.Client

	// lenient switches the completion contract: the strict strategy invokes
	// done only on a 2xx response with a readable body, while the lenient
	// strategy invokes done once the request reaches a terminal state
	// regardless of status, passing whatever status and body are available.
	lenient bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithOverride installs a user-supplied fetch strategy.
func WithOverride(s Sender) Option {
	return func(a *Adapter) { a.override = s }
}

// WithClient replaces the default HTTP client (injectable for tests).
func WithClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithLenient makes Send deliver terminal responses of any status rather
// than only structurally-OK ones.
func WithLenient() Option {
	return func(a *Adapter) { a.lenient = true }
}

// New returns an Adapter using the strict strategy and a default client
// unless configured otherwise.
func New(opts ...Option) *Adapter {
	a := &Adapter{client: &http.Client{Timeout: defaultTimeout}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Send issues a GET for url and delivers the outcome to done. See the
// Adapter doc for the strategy selection and completion contract.
func (a *Adapter) Send(ctx context.Context, url string, done OnComplete, autoSync bool) {
	if a.override != nil {
		sendOverride(ctx, a.override, url, done, autoSync)
		return
	}
	if a.client == nil {
		// No strategy available — feature absent, silent no-op.
		return
	}

	status, body, err := a.get(ctx, url)
	if err != nil {
		slog.Debug("fetch: request failed", "url", url, "err", err)
		return
	}
	if !a.lenient && (status < 200 || status >= 300) {
		slog.Debug("fetch: non-ok status", "url", url, "status", status)
		return
	}
	done(status, body, autoSync)
}

// get performs the GET and reads the full body. A response with any status
// counts as success here; the caller applies the strategy's status policy.
func (a *Adapter) get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch: http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if a.lenient {
			// Terminal state reached — deliver what we have.
			return resp.StatusCode, "", nil
		}
		return 0, "", fmt.Errorf("fetch: read body: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

// sendOverride runs the user strategy, containing any panic.
func sendOverride(ctx context.Context, s Sender, url string, done OnComplete, autoSync bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("fetch: override strategy panicked", "url", url, "panic", r)
		}
	}()
	s(ctx, url, done, autoSync)
}
