package engine

// latch is a resolve-once optional value. The first Resolve wins; later
// resolution passes cannot change it until Reset. This is how first-write
// fields (auto-sync, receive mode, cfg URL) keep their meaning across
// repeated host config notifications.
type latch[T any] struct {
	v   T
	set bool
}

// Resolve sets the value if it is still unset.
func (l *latch[T]) Resolve(v T) {
	if !l.set {
		l.v = v
		l.set = true
	}
}

// Get returns the value and whether it has been resolved.
func (l *latch[T]) Get() (T, bool) {
	return l.v, l.set
}

// Value returns the resolved value, or the zero value when unset.
func (l *latch[T]) Value() T {
	return l.v
}

// Reset returns the latch to unset.
func (l *latch[T]) Reset() {
	var zero T
	l.v = zero
	l.set = false
}
