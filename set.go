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

// Set is an unordered set of keys. It shares its engine with Map and stores
// no values.
//
// A Set is NOT goroutine-safe.
type Set[K comparable] struct {
	t table[K, struct{}]
}

// NewSet constructs an empty Set in inline storage.
func NewSet[K comparable](options ...Option[K]) *Set[K] {
	s := &Set[K]{}
	s.t.init(options)
	return s
}

// NewSetWithCapacity constructs an empty Set that holds n keys without
// growing. It returns ErrCapacityOverflow if n is negative or too large to
// address.
func NewSetWithCapacity[K comparable](n int, options ...Option[K]) (*Set[K], error) {
	s := NewSet[K](options...)
	if err := s.t.reserve(n); err != nil {
		return nil, err
	}
	return s, nil
}

// Insert adds key to the set, reporting whether it was newly added.
// Inserting a key that is already present is a no-op. Insert returns
// ErrInvalidKey and leaves the set unchanged if key is reserved.
func (s *Set[K]) Insert(key K) (bool, error) {
	_, found, err := s.t.insert(key, struct{}{}, false)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// Contains reports whether key is in the set.
func (s *Set[K]) Contains(key K) bool {
	_, ok := s.t.get(key)
	return ok
}

// Remove removes key from the set, reporting whether it was present.
func (s *Set[K]) Remove(key K) (bool, error) {
	return s.t.remove(key)
}

// Len returns the number of keys in the set.
func (s *Set[K]) Len() int {
	return s.t.used
}

// Clear removes all keys and returns the set to inline storage.
func (s *Set[K]) Clear() {
	s.t.clear()
}

// Close releases any memory back to the configured allocator. It is invalid
// to use a Set after it has been closed, though Close itself is idempotent.
func (s *Set[K]) Close() {
	s.t.clear()
	s.t.allocator = nil
}

// Reserve grows the set so that it holds n keys without growing again.
func (s *Set[K]) Reserve(n int) error {
	return s.t.reserve(n)
}

// Compact rebuilds the bucket array in place of its tombstones.
func (s *Set[K]) Compact() {
	s.t.compact()
}

// Clone returns a copy of the set sharing its options.
func (s *Set[K]) Clone() *Set[K] {
	c := &Set[K]{}
	s.t.clone(&c.t)
	return c
}

// All returns an iterator over the keys in the set in unspecified order.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		s.t.all(func(k K, _ struct{}) bool {
			return yield(k)
		})
	}
}

// Stats returns a snapshot of the set's layout.
func (s *Set[K]) Stats() Stats {
	return s.t.stats()
}

// BinCounts returns a histogram of probe displacements.
func (s *Set[K]) BinCounts() []int {
	return s.t.binCounts()
}

// SmallCapacity returns the number of keys held without allocating.
func (s *Set[K]) SmallCapacity() int {
	return smallCapacity
}
