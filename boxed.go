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

// Boxed lifts a key type whose every value is meaningful into one with an
// out-of-band vacant marker: the zero Boxed, which Box never produces. It
// costs one extra word of padding per key for small T, so prefer reserving a
// natural spare value with WithVacantKey when the key domain has one.
type Boxed[T comparable] struct {
	value T
	valid bool
}

// Box wraps v.
func Box[T comparable](v T) Boxed[T] {
	return Boxed[T]{value: v, valid: true}
}

// Unbox returns the wrapped value.
func (b Boxed[T]) Unbox() T {
	return b.value
}

// BoxedHasher hashes a Boxed key with the Hasher of the wrapped type.
func BoxedHasher[T comparable](h Hasher[T]) Hasher[Boxed[T]] {
	return HashFunc[Boxed[T]](func(b Boxed[T]) uint64 {
		return h.Hash(b.value)
	})
}
