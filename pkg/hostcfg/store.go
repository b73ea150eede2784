package hostcfg

import (
	"reflect"
	"sync"

	"github.com/telemetrykit/cfgsync/pkg/types"
)

// Store is the live host configuration tree shared by SDK components.
// Listeners registered with OnChange observe every effective mutation in
// registration order. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	root      types.ConfigSnapshot
	listeners []*listener
	nextID    int
}

type listener struct {
	id int
	fn func(types.ConfigSnapshot)
}

// New creates a Store seeded with a deep copy of initial (nil is treated as
// an empty tree).
func New(initial types.ConfigSnapshot) *Store {
	root := types.Clone(initial)
	if root == nil {
		root = types.ConfigSnapshot{}
	}
	return &Store{root: root}
}

// OnChange registers fn and invokes it once immediately with the current
// tree, then again after every effective UpdateConfig. The returned cancel
// function detaches only this listener; calling it more than once is safe.
func (s *Store) OnChange(fn func(types.ConfigSnapshot)) (cancel func()) {
	s.mu.Lock()
	l := &listener{id: s.nextID, fn: fn}
	s.nextID++
	s.listeners = append(s.listeners, l)
	snap := types.Clone(s.root)
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, cand := range s.listeners {
			if cand.id == l.id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// UpdateConfig deep-merges partial into the live tree and notifies
// listeners. A merge that produces no effective change notifies nobody —
// this is what keeps a broadcast→receive→apply cycle between instances from
// ringing forever.
func (s *Store) UpdateConfig(partial types.ConfigSnapshot) {
	if partial == nil {
		return
	}

	s.mu.Lock()
	merged := types.Merge(s.root, partial)
	if reflect.DeepEqual(merged, s.root) {
		s.mu.Unlock()
		return
	}
	s.root = merged
	snap := types.Clone(merged)
	targets := make([]*listener, len(s.listeners))
	copy(targets, s.listeners)
	s.mu.Unlock()

	// Invoke outside the lock so a listener may itself call UpdateConfig.
	for _, l := range targets {
		l.fn(snap)
	}
}

// Extension resolves the namespaced sub-config stored under id, filling in
// any key absent from the tree with its value from defaults. The result is
// detached from the live tree.
func (s *Store) Extension(id string, defaults types.ConfigSnapshot) types.ConfigSnapshot {
	s.mu.Lock()
	sub, _ := s.root[id].(types.ConfigSnapshot)
	out := types.Clone(sub)
	s.mu.Unlock()

	if out == nil {
		out = types.ConfigSnapshot{}
	}
	for k, v := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = types.CloneValue(v)
		}
	}
	return out
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() types.ConfigSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Clone(s.root)
}
