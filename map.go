// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openhash

import "iter"

// Map is an unordered map from keys to values with Put, Get, Delete and All
// operations. Keys live in a bucket array indexed by an injected Hasher and
// values in a second array running parallel to it; see the package
// documentation for the layout. By default a Map uses a randomly seeded
// MapHash and reserves the zero value of K as its vacant marker.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	t table[K, V]
}

// NewMap constructs an empty Map. It starts out in inline storage and
// allocates nothing until it holds more than SmallCapacity elements.
func NewMap[K comparable, V any](options ...Option[K]) *Map[K, V] {
	m := &Map[K, V]{}
	m.t.init(options)
	return m
}

// NewMapWithCapacity constructs an empty Map that holds n elements without
// growing. It returns ErrCapacityOverflow if n is negative or too large to
// address.
func NewMapWithCapacity[K comparable, V any](n int, options ...Option[K]) (*Map[K, V], error) {
	m := NewMap[K, V](options...)
	if err := m.t.reserve(n); err != nil {
		return nil, err
	}
	return m, nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists, in which case the previous value
// is returned with replaced set. Put returns ErrInvalidKey and leaves the map
// unchanged if key is reserved.
func (m *Map[K, V]) Put(key K, value V) (prev V, replaced bool, err error) {
	return m.t.insert(key, value, true)
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	return m.t.get(key)
}

// Contains reports whether key is present. Reserved keys are never present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.t.get(key)
	return ok
}

// Delete deletes the entry corresponding to the specified key from the map,
// reporting whether it was present. Delete returns ErrInvalidKey if key is
// reserved.
func (m *Map[K, V]) Delete(key K) (bool, error) {
	return m.t.remove(key)
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.t.used
}

// Clear deletes all entries and returns the map to inline storage, releasing
// its bucket array to the allocator.
func (m *Map[K, V]) Clear() {
	m.t.clear()
}

// Close releases any memory back to the configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	m.t.clear()
	m.t.allocator = nil
}

// Reserve grows the map so that it holds n entries without growing again.
func (m *Map[K, V]) Reserve(n int) error {
	return m.t.reserve(n)
}

// Compact rebuilds the bucket array in place of its tombstones.
func (m *Map[K, V]) Compact() {
	m.t.compact()
}

// Clone returns a copy of the map sharing its options.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{}
	m.t.clone(&c.t)
	return c
}

// All returns an iterator over the entries in the map. The order is
// unspecified and changes when the map is resized. The map can be mutated
// during iteration, though there is no guarantee that the mutations will be
// visible to the iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.t.all
}

// Keys returns an iterator over the keys in the map.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.t.all(func(k K, _ V) bool {
			return yield(k)
		})
	}
}

// Values returns an iterator over the values in the map.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.t.all(func(_ K, v V) bool {
			return yield(v)
		})
	}
}

// Stats returns a snapshot of the map's layout.
func (m *Map[K, V]) Stats() Stats {
	return m.t.stats()
}

// BinCounts returns a histogram of probe displacements. See Stats for the
// remaining diagnostics.
func (m *Map[K, V]) BinCounts() []int {
	return m.t.binCounts()
}

// SmallCapacity returns the number of entries held without allocating.
func (m *Map[K, V]) SmallCapacity() int {
	return smallCapacity
}
