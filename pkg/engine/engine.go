package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telemetrykit/cfgsync/pkg/bus"
	"github.com/telemetrykit/cfgsync/pkg/fetch"
	"github.com/telemetrykit/cfgsync/pkg/hostcfg"
	"github.com/telemetrykit/cfgsync/pkg/metrics"
	"github.com/telemetrykit/cfgsync/pkg/poll"
	"github.com/telemetrykit/cfgsync/pkg/sanitize"
	"github.com/telemetrykit/cfgsync/pkg/types"
)

// Engine owns the configuration snapshot for one SDK instance and keeps it
// in sync with its peers: it broadcasts local changes as events, applies
// sanitized peer updates, and in fetch mode polls a canonical remote
// document instead.
//
// Every callback — host config notification, bus delivery, timer fire,
// fetch completion — runs to completion under one mutex, and all of them
// absorb failure: a malformed payload, a panicking override, or a transport
// error degrades to a no-op, never to a panic in the host application.
type Engine struct {
	host      *hostcfg.Store
	bus       bus.Bus
	adapter   *fetch.Adapter
	scheduler *poll.Scheduler

	// fixed for the engine's lifetime
	overrideSync SyncFunc
	onReceive    ReceiveFunc
	fixedNS      string

	mu sync.Mutex

	// lifecycle; generation invalidates callbacks from a previous lifecycle
	initialized bool
	generation  uint64
	ctx         context.Context
	cancelFetch context.CancelFunc
	cancelHost  func()

	// sync state, reset on Initialize and Teardown
	snapshot      types.ConfigSnapshot
	autoSync      latch[bool]
	receive       latch[bool]
	cfgURL        latch[string]
	evtName       string
	namespace     string
	fetchInterval time.Duration
	rules         map[string]bool
	listening     bool
	pollStarted   bool
}

// New creates an Engine bound to the given host config store and bus.
// Call Initialize to start it.
func New(host *hostcfg.Store, b bus.Bus, opts ...Option) *Engine {
	e := &Engine{
		host:      host,
		bus:       b,
		scheduler: poll.NewScheduler(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.adapter == nil {
		e.adapter = fetch.New()
	}
	return e
}

// Initialize resets state, derives the instance namespace, and subscribes
// to host configuration changes (the handler fires once immediately).
// Exactly one Initialize is allowed per lifecycle; call Teardown first to
// start another.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return fmt.Errorf("engine: already initialized")
	}
	e.resetLocked()
	e.initialized = true
	e.namespace = e.fixedNS
	if e.namespace == "" {
		e.namespace = nextNamespace()
	}
	e.ctx, e.cancelFetch = context.WithCancel(context.Background())
	gen := e.generation
	e.mu.Unlock()

	cancel := e.host.OnChange(func(cfg types.ConfigSnapshot) {
		e.onHostConfigChanged(gen, cfg)
	})

	e.mu.Lock()
	if !e.initialized || e.generation != gen {
		// Torn down from inside the immediate notification.
		e.mu.Unlock()
		cancel()
		return nil
	}
	e.cancelHost = cancel
	e.mu.Unlock()
	return nil
}

// SetConfig replaces the snapshot with a deep copy of cfg. When autoSync is
// true the new snapshot is broadcast as well. A nil cfg returns false and
// performs no I/O.
func (e *Engine) SetConfig(cfg types.ConfigSnapshot, autoSync bool) bool {
	if cfg == nil {
		return false
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return false
	}
	e.snapshot = types.Clone(cfg)
	e.mu.Unlock()

	if autoSync {
		return e.Sync(nil)
	}
	return true
}

// Sync broadcasts the current snapshot immediately, bypassing the auto-sync
// gate. A configured sync override fully replaces the built-in broadcast
// and its return value is returned as-is. Failures are swallowed; Sync
// reports false instead of propagating.
func (e *Engine) Sync(customDetails any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("engine: sync failed", "panic", r)
			ok = false
		}
	}()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return false
	}
	name := e.evtName
	snap := types.Clone(e.snapshot)
	e.mu.Unlock()

	if e.overrideSync != nil {
		return e.overrideSync(snap, customDetails)
	}

	evt := types.OutboundEvent{
		Name:   name,
		Detail: types.Detail{Cfg: snap, CustomDetails: customDetails},
	}
	if err := e.bus.Publish(evt); err != nil {
		slog.Warn("engine: broadcast failed", "event", name, "err", err)
		return false
	}
	metrics.BroadcastsTotal.Inc()
	return true
}

// UpdateEventListenerName unconditionally detaches the current listener.
// A non-empty name is stored and resubscribed under; an empty name leaves
// the listener detached, disabling receiving.
func (e *Engine) UpdateEventListenerName(name string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("engine: update listener name failed", "panic", r)
			ok = false
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return false
	}

	e.bus.Unsubscribe(e.evtName, e.namespace)
	e.listening = false
	if name != "" {
		e.evtName = name
		e.subscribeLocked()
	}
	return true
}

// Namespace returns the instance's bus namespace (stable between
// Initialize and Teardown).
func (e *Engine) Namespace() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.namespace
}

// Snapshot returns a deep copy of the current configuration snapshot.
func (e *Engine) Snapshot() types.ConfigSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.Clone(e.snapshot)
}

// Teardown detaches the bus listener and the host config subscription,
// cancels any pending poll timer and in-flight fetch, and resets all state.
// Callbacks from this lifecycle that fire afterwards are no-ops.
func (e *Engine) Teardown() {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = false
	e.generation++
	name, ns := e.evtName, e.namespace
	cancelHost := e.cancelHost
	cancelFetch := e.cancelFetch
	e.resetLocked()
	e.mu.Unlock()

	e.scheduler.Stop()
	e.bus.Unsubscribe(name, ns)
	if cancelHost != nil {
		cancelHost()
	}
	if cancelFetch != nil {
		cancelFetch()
	}
}

// --- internal ---------------------------------------------------------------

// onHostConfigChanged reacts to one host configuration notification. It
// resolves the cfgsync extension block exactly once, applies the latch
// semantics, handles event renames, and routes to either the broadcast path
// or the fetch+poll path.
func (e *Engine) onHostConfigChanged(gen uint64, cfg types.ConfigSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("engine: host config handler failed", "panic", r)
		}
	}()

	e.mu.Lock()
	if !e.initialized || e.generation != gen {
		e.mu.Unlock()
		return
	}

	ext := e.host.Extension(ExtensionID, extensionDefaults())

	e.autoSync.Resolve(!boolOpt(ext, "disableAutoSync"))
	e.receive.Resolve(boolOpt(ext, "receiveChanges"))
	if url := strOpt(ext, "cfgUrl"); url != "" {
		e.cfgURL.Resolve(url)
	}
	e.fetchInterval = durOpt(ext, "scheduleFetchTimeout", DefaultFetchInterval)
	e.rules = rulesOpt(ext, "nonOverrideConfigs", e.rules)

	// Event rename: the stored name always tracks the latest value so a
	// later Sync broadcasts under it; only the live subscription depends on
	// receive mode.
	newName := strOpt(ext, "customEvtName")
	if newName == "" {
		newName = DefaultEventName
	}
	if newName != e.evtName {
		e.bus.Unsubscribe(e.evtName, e.namespace)
		e.listening = false
		e.evtName = newName
	}
	if e.receive.Value() && !e.listening {
		e.subscribeLocked()
	}

	url, urlSet := e.cfgURL.Get()
	if urlSet && url != "" {
		// Fetch mode: host config is ignored from now on; the canonical
		// document is the remote one. Start the poll loop exactly once.
		startPoll := !e.pollStarted
		e.pollStarted = true
		interval := e.fetchInterval
		auto := e.autoSync.Value()
		e.mu.Unlock()

		if startPoll {
			go e.fetchOnce(gen, url, auto)
			e.scheduler.Start(interval, func() { e.fetchOnce(gen, url, auto) })
		}
		return
	}

	e.snapshot = types.Clone(cfg)
	broadcast := e.autoSync.Value()
	e.mu.Unlock()

	if broadcast {
		e.Sync(nil)
	}
}

// subscribeLocked attaches the receive handler under the current event name
// and namespace. Caller holds e.mu.
func (e *Engine) subscribeLocked() {
	gen := e.generation
	e.bus.Subscribe(e.evtName, e.namespace, func(evt types.OutboundEvent) {
		e.receiveEvent(gen, evt)
	})
	e.listening = true
}

// receiveEvent applies one inbound configuration event: delegate to the
// receive override when configured, otherwise sanitize and push to the host.
// A nil cfg or nil sanitize result is a silent no-op.
func (e *Engine) receiveEvent(gen uint64, evt types.OutboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("engine: receive handler failed", "event", evt.Name, "panic", r)
		}
	}()

	e.mu.Lock()
	if !e.initialized || e.generation != gen {
		e.mu.Unlock()
		return
	}
	rules := e.rules
	e.mu.Unlock()

	if e.onReceive != nil {
		e.onReceive(evt)
		return
	}

	sanitized := sanitize.Sanitize(evt.Detail.Cfg, rules)
	if sanitized == nil {
		metrics.EventsReceived.WithLabelValues("ignored").Inc()
		return
	}
	// Outside the engine mutex: the host notifies its listeners
	// synchronously, and one of them is this engine.
	e.host.UpdateConfig(sanitized)
	metrics.EventsReceived.WithLabelValues("applied").Inc()
}

// fetchOnce dispatches one fetch attempt for the canonical document.
func (e *Engine) fetchOnce(gen uint64, url string, autoSync bool) {
	e.mu.Lock()
	if !e.initialized || e.generation != gen {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.mu.Unlock()

	e.adapter.Send(ctx, url, func(status int, body string, auto bool) {
		e.onFetchComplete(gen, status, body, auto)
	}, autoSync)
}

// onFetchComplete is the engine-provided completion callback: accept
// statuses in [200,400) with a non-empty body, parse, and adopt the result
// as the new snapshot. Anything else leaves state untouched; the poller
// still rearms on schedule.
func (e *Engine) onFetchComplete(gen uint64, status int, body string, autoSync bool) {
	if status < 200 || status >= 400 || body == "" {
		slog.Debug("engine: fetch response rejected", "status", status)
		metrics.FetchesTotal.WithLabelValues("rejected").Inc()
		return
	}

	parsed, err := types.ParseDocument([]byte(body))
	if err != nil {
		slog.Debug("engine: fetched document unparsable", "err", err)
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return
	}

	e.mu.Lock()
	if !e.initialized || e.generation != gen {
		// Completed after teardown — tolerate as a no-op.
		e.mu.Unlock()
		return
	}
	e.snapshot = parsed
	e.mu.Unlock()

	metrics.FetchesTotal.WithLabelValues("applied").Inc()
	if autoSync {
		e.Sync(nil)
	}
}

// resetLocked returns all sync state to its initial value. Caller holds e.mu.
func (e *Engine) resetLocked() {
	e.snapshot = nil
	e.autoSync.Reset()
	e.receive.Reset()
	e.cfgURL.Reset()
	e.evtName = DefaultEventName
	e.namespace = ""
	e.fetchInterval = DefaultFetchInterval
	e.rules = sanitize.DefaultRules()
	e.listening = false
	e.pollStarted = false
	e.cancelHost = nil
	e.ctx = nil
	e.cancelFetch = nil
}

// --- namespace derivation ----------------------------------------------------

var (
	processNonce = rand.Uint32() //nolint:gosec // not crypto — uniqueness only
	instanceSeq  atomic.Uint64
)

// nextNamespace derives a bus namespace unique to this instance, so
// teardown removes only its own listener while still matching peers on the
// shared event name.
func nextNamespace() string {
	return fmt.Sprintf("cfgsync-%08x-%d", processNonce, instanceSeq.Add(1))
}
