package core

import "slices"

// ref is a value tagged with a version that advances on every Set.
type ref[T any] struct {
	value   T
	version uint64
}

func (r *ref[T]) Set(value T) {
	r.value = value
	r.version++
}

// Touch advances the version without changing the value.
func (r *ref[T]) Touch() {
	r.version++
}

func (r *ref[T]) Get() T {
	return r.value
}

func (r *ref[T]) Version() uint64 {
	return r.version
}

// memo caches a derived value and recomputes it only when the versions of
// its inputs differ from the ones it was last computed with.
type memo[T any] struct {
	value   T
	deps    []uint64
	valid   bool
	version uint64
}

func (m *memo[T]) Get(compute func() T, deps ...uint64) T {
	if m.valid && slices.Equal(m.deps, deps) {
		return m.value
	}
	m.value = compute()
	m.deps = append(m.deps[:0], deps...)
	m.valid = true
	m.version++
	return m.value
}

// Version advances each time the cached value is recomputed.
func (m *memo[T]) Version() uint64 {
	return m.version
}

func (m *memo[T]) Invalidate() {
	m.valid = false
}
