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

import "go.uber.org/zap"

// config accumulates the options passed to a constructor.
type config[K comparable] struct {
	hasher       Hasher[K]
	vacant       K
	tombstone    K
	hasTombstone bool
	// allocator holds an Allocator[K, V]. It is untyped in V so that options
	// can be shared between Set and Map; the table asserts the concrete type.
	allocator any
	logger    *zap.Logger
}

// Option configures a Set or Map while it is being created.
type Option[K comparable] interface {
	apply(c *config[K])
}

type hasherOption[K comparable] struct {
	hasher Hasher[K]
}

func (op hasherOption[K]) apply(c *config[K]) {
	c.hasher = op.hasher
}

// WithHasher is an option to specify the Hasher used for keys of type K. The
// default is a randomly seeded MapHash.
func WithHasher[K comparable](h Hasher[K]) Option[K] {
	return hasherOption[K]{h}
}

// WithHashFunc is like WithHasher for a plain function.
func WithHashFunc[K comparable](f func(key K) uint64) Option[K] {
	return hasherOption[K]{HashFunc[K](f)}
}

type vacantKeyOption[K comparable] struct {
	key K
}

func (op vacantKeyOption[K]) apply(c *config[K]) {
	c.vacant = op.key
}

// WithVacantKey reserves key as the marker of a never-occupied slot. The
// default is the zero value of K. The reserved key can not be stored: Insert,
// Put, Remove and Delete reject it with ErrInvalidKey.
func WithVacantKey[K comparable](key K) Option[K] {
	return vacantKeyOption[K]{key}
}

type tombstoneKeyOption[K comparable] struct {
	key K
}

func (op tombstoneKeyOption[K]) apply(c *config[K]) {
	c.tombstone = op.key
	c.hasTombstone = true
}

// WithTombstoneKey reserves key as the marker of a removed slot. Without it
// removals are recorded in a bit-vector with one bit per slot that is
// allocated on the first removal. Like the vacant key, the tombstone key can
// not be stored and must differ from the vacant key.
func WithTombstoneKey[K comparable](key K) Option[K] {
	return tombstoneKeyOption[K]{key}
}

// Allocator specifies an interface for allocating and releasing the key and
// value arrays used by a Set or Map once it outgrows its inline storage. The
// default allocator utilizes Go's builtin make() and allows the GC to reclaim
// memory.
//
// If the allocator is manually managing memory and requires that arrays be
// freed then Close must be called in order to ensure FreeKeys and FreeValues
// are called.
type Allocator[K comparable, V any] interface {
	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) []K

	// AllocValues should return a slice equivalent to make([]V, n).
	AllocValues(n int) []V

	// FreeKeys can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeValues can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocValues.
	FreeValues(v []V)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocKeys(n int) []K {
	return make([]K, n)
}

func (defaultAllocator[K, V]) AllocValues(n int) []V {
	return make([]V, n)
}

func (defaultAllocator[K, V]) FreeKeys(v []K) {
}

func (defaultAllocator[K, V]) FreeValues(v []V) {
}

type allocatorOption[K comparable] struct {
	allocator any
}

func (op allocatorOption[K]) apply(c *config[K]) {
	c.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use. Sets store no
// values and take an Allocator[K, struct{}].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) Option[K] {
	return allocatorOption[K]{allocator}
}

type loggerOption[K comparable] struct {
	logger *zap.Logger
}

func (op loggerOption[K]) apply(c *config[K]) {
	c.logger = op.logger
}

// WithLogger is an option to trace resizes, spills out of the inline storage
// and clears at debug level.
func WithLogger[K comparable](logger *zap.Logger) Option[K] {
	return loggerOption[K]{logger}
}
