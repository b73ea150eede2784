package types

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ConfigSnapshot is an arbitrary nested configuration tree: string keys
// mapping to scalars, nested objects, or arrays. Snapshots are replaced
// wholesale on every accepted update, never mutated in place — callers that
// need to retain one must Clone it first.
type ConfigSnapshot = map[string]any

// Detail is the payload attached to a broadcast configuration event.
type Detail struct {
	// Cfg is the configuration tree being announced.
	Cfg ConfigSnapshot `json:"cfg,omitempty"`

	// CustomDetails carries optional caller-supplied context alongside the
	// configuration (free-form; forwarded verbatim).
	CustomDetails any `json:"customDetails,omitempty"`
}

// OutboundEvent is one configuration-change event as it travels on the bus.
type OutboundEvent struct {
	Name   string `json:"name"`
	Detail Detail `json:"detail"`
}

// Frame is the wire envelope used between an SDK instance and the relay
// server. Ns identifies the originating instance so the relay can avoid
// echoing a frame back to its sender.
type Frame struct {
	Ns    string        `json:"ns,omitempty"`
	Event OutboundEvent `json:"event"`
}

// Clone returns a deep copy of cfg. Nested maps and slices are copied
// recursively; scalar leaves are copied by value. A nil cfg returns nil.
func Clone(cfg ConfigSnapshot) ConfigSnapshot {
	if cfg == nil {
		return nil
	}
	out := make(ConfigSnapshot, len(cfg))
	for k, v := range cfg {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a single configuration value: maps and slices are
// copied recursively, scalar leaves are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case ConfigSnapshot:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge deep-merges src into a copy of dst and returns the result. Nested
// maps merge recursively; every other value in src replaces the value in
// dst. Neither input is mutated.
func Merge(dst, src ConfigSnapshot) ConfigSnapshot {
	if dst == nil {
		return Clone(src)
	}
	out := Clone(dst)
	for k, v := range src {
		dm, dok := out[k].(ConfigSnapshot)
		sm, sok := v.(ConfigSnapshot)
		if dok && sok {
			out[k] = Merge(dm, sm)
			continue
		}
		out[k] = CloneValue(v)
	}
	return out
}

// ParseDocument parses a structured JSON document into a ConfigSnapshot.
// Returns an error on malformed input or a non-object top level.
func ParseDocument(text []byte) (ConfigSnapshot, error) {
	var cfg ConfigSnapshot
	if err := json.Unmarshal(text, &cfg); err != nil {
		return nil, fmt.Errorf("types: parse document: %w", err)
	}
	return cfg, nil
}

// EncodeFrame serializes a relay wire frame.
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("types: encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a relay wire frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("types: decode frame: %w", err)
	}
	return f, nil
}
