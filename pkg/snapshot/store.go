// Package snapshot holds the newest value of a feed.
//
// A Store always has a value: it starts at the initial value it is created
// with and is only ever replaced as a whole. Readers get a deep copy, so
// nothing they do can affect the stored value or other readers.
package snapshot

import (
	"sync"
	"time"
)

// Store guards a single value of type T.
type Store[T any] struct {
	mu      sync.RWMutex
	value   T
	clone   func(T) T
	updated time.Time
	version uint64
}

// New returns a store holding initial. clone must produce a copy that shares
// no mutable memory with its argument; nil is allowed for types without
// references.
func New[T any](initial T, clone func(T) T) *Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Store[T]{value: initial, clone: clone}
}

// Replace swaps in v. The store takes ownership of v.
func (s *Store[T]) Replace(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = v
	s.updated = time.Now()
	s.version++
}

// Read returns a deep copy of the current value.
func (s *Store[T]) Read() T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clone(s.value)
}

// Version counts replacements. Zero means the store still holds its initial
// value.
func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// UpdatedAt returns the time of the last replacement, zero if none.
func (s *Store[T]) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updated
}
