package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telemetrykit/cfgsync/pkg/types"
)

// Entry is the latest frame seen under one event name, together with the
// time it was received.
type Entry struct {
	Frame     types.Frame
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory latest-event store, keyed by event name.
// New connections replay its contents so a freshly started instance
// converges without waiting for the next broadcast. A background goroutine
// (Run) periodically evicts entries that have not been refreshed within the
// configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the frame for its event name. Frames with an empty
// event name are ignored.
func (s *Store) Put(f types.Frame) {
	if f.Event.Name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[f.Event.Name] = &Entry{
		Frame:     f,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for the given event name and whether one was found.
// The entry may be stale if TTL has elapsed.
func (s *Store) Get(name string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	return e, ok
}

// List returns a snapshot of all entries whose UpdatedAt is within the TTL.
// Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for name, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, name)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so entries are evicted promptly. Run blocks
// until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale events", "count", n)
			}
		}
	}
}
