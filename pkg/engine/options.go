package engine

import (
	"time"

	"github.com/telemetrykit/cfgsync/pkg/fetch"
	"github.com/telemetrykit/cfgsync/pkg/sanitize"
	"github.com/telemetrykit/cfgsync/pkg/types"
)

const (
	// ExtensionID is the key of the engine's block in the host config tree.
	ExtensionID = "cfgsync"

	// DefaultEventName is the shared event name instances broadcast on
	// unless customEvtName overrides it.
	DefaultEventName = "cfgsync"

	// DefaultFetchInterval is the poll interval in fetch mode.
	DefaultFetchInterval = 30 * time.Minute
)

// SyncFunc fully replaces the built-in broadcast. Its return value is
// returned from Sync as-is; the engine does not additionally publish.
type SyncFunc func(cfg types.ConfigSnapshot, customDetails any) bool

// ReceiveFunc bypasses the built-in sanitize-and-apply on receipt; the raw
// event is delegated verbatim.
type ReceiveFunc func(evt types.OutboundEvent)

// Option configures an Engine at construction. Function-valued overrides
// live here rather than in the host config tree, which carries only data.
type Option func(*Engine)

// WithOverrideSync installs a full override of the broadcast strategy.
func WithOverrideSync(fn SyncFunc) Option {
	return func(e *Engine) { e.overrideSync = fn }
}

// WithOverrideFetch installs a full override of the fetch strategy.
func WithOverrideFetch(s fetch.Sender) Option {
	return func(e *Engine) { e.adapter = fetch.New(fetch.WithOverride(s)) }
}

// WithOnReceive installs a callback that receives raw inbound events,
// bypassing the built-in merge-and-apply.
func WithOnReceive(fn ReceiveFunc) Option {
	return func(e *Engine) { e.onReceive = fn }
}

// WithFetchAdapter replaces the whole transport adapter (injectable for
// tests and for lenient-strategy hosts).
func WithFetchAdapter(a *fetch.Adapter) Option {
	return func(e *Engine) { e.adapter = a }
}

// WithNamespace pins the instance namespace instead of deriving a unique
// one. Two engines sharing a namespace on one bus will clobber each other's
// subscriptions; use only in tests.
func WithNamespace(ns string) Option {
	return func(e *Engine) { e.fixedNS = ns }
}

// extensionDefaults is the defaults table resolved against the host's
// cfgsync block on every change notification.
func extensionDefaults() types.ConfigSnapshot {
	return types.ConfigSnapshot{
		"disableAutoSync":      false,
		"customEvtName":        "",
		"cfgUrl":               "",
		"receiveChanges":       false,
		"scheduleFetchTimeout": DefaultFetchInterval,
		"nonOverrideConfigs":   sanitize.DefaultRules(),
	}
}

// --- extension value coercion ------------------------------------------------

func boolOpt(ext types.ConfigSnapshot, key string) bool {
	b, _ := ext[key].(bool)
	return b
}

func strOpt(ext types.ConfigSnapshot, key string) string {
	s, _ := ext[key].(string)
	return s
}

// durOpt accepts a time.Duration, a duration string ("30m"), or a bare
// number of milliseconds (the wire form used by remote documents).
func durOpt(ext types.ConfigSnapshot, key string, fallback time.Duration) time.Duration {
	switch v := ext[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	}
	return fallback
}

// rulesOpt accepts the protected-key set either as a map[string]bool or as
// a config subtree with boolean leaves.
func rulesOpt(ext types.ConfigSnapshot, key string, fallback map[string]bool) map[string]bool {
	switch v := ext[key].(type) {
	case map[string]bool:
		return v
	case types.ConfigSnapshot:
		out := make(map[string]bool, len(v))
		for k, raw := range v {
			if b, ok := raw.(bool); ok {
				out[k] = b
			}
		}
		return out
	}
	return fallback
}
