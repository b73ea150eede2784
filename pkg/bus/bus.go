package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/telemetrykit/cfgsync/pkg/types"
)

// Handler receives one configuration event. Handlers run synchronously on
// the publisher's goroutine; a handler that panics is recovered and logged
// so one bad subscriber never takes down the rest.
type Handler func(evt types.OutboundEvent)

// Bus is the shared event channel configuration events travel on. Multiple
// SDK instances may publish and subscribe on overlapping event names; the
// namespace scopes unsubscription to one instance without affecting other
// instances' listeners on the same name.
type Bus interface {
	// Subscribe registers h under the event name, keyed by namespace.
	// Subscribing again with the same name and namespace replaces the
	// previous handler.
	Subscribe(name, namespace string, h Handler)

	// Unsubscribe removes the handler registered under name and namespace.
	// Removing a handler that was never registered is a no-op.
	Unsubscribe(name, namespace string)

	// Publish delivers evt to every handler subscribed under evt.Name,
	// across all namespaces.
	Publish(evt types.OutboundEvent) error
}

// Memory is an in-process Bus. The zero value is not usable; call NewMemory.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler // event name → namespace → handler
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string]map[string]Handler)}
}

var (
	defaultBus  *Memory
	defaultOnce sync.Once
)

// Default returns the process-wide shared bus. Instances created without an
// explicit bus all meet here, mirroring how instances on one page share a
// single event target.
func Default() *Memory {
	defaultOnce.Do(func() { defaultBus = NewMemory() })
	return defaultBus
}

// Subscribe implements Bus.
func (m *Memory) Subscribe(name, namespace string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byNS, ok := m.handlers[name]
	if !ok {
		byNS = make(map[string]Handler)
		m.handlers[name] = byNS
	}
	byNS[namespace] = h
}

// Unsubscribe implements Bus.
func (m *Memory) Unsubscribe(name, namespace string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byNS, ok := m.handlers[name]
	if !ok {
		return
	}
	delete(byNS, namespace)
	if len(byNS) == 0 {
		delete(m.handlers, name)
	}
}

// Publish implements Bus. Delivery order across namespaces is unspecified.
func (m *Memory) Publish(evt types.OutboundEvent) error {
	if evt.Name == "" {
		return fmt.Errorf("bus: publish: empty event name")
	}

	m.mu.RLock()
	targets := make([]Handler, 0, len(m.handlers[evt.Name]))
	for _, h := range m.handlers[evt.Name] {
		targets = append(targets, h)
	}
	m.mu.RUnlock()

	for _, h := range targets {
		deliver(h, evt)
	}
	return nil
}

// SubscriberCount returns the number of handlers registered under name.
func (m *Memory) SubscriberCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[name])
}

// deliver invokes h, containing any panic to this one subscriber.
func deliver(h Handler, evt types.OutboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("bus: subscriber panicked", "event", evt.Name, "panic", r)
		}
	}()
	h(evt)
}
