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

// Package openhash implements open-addressing hash sets and maps over
// arbitrary comparable keys with a pluggable hash function. See
// https://en.wikipedia.org/wiki/Open_addressing.
//
// # Slots without metadata
//
// A bucket array holds nothing but keys (and, for maps, a value array that
// runs parallel to it). There is no control byte or occupancy bitmap per
// slot. Instead one key value is reserved as the vacant marker: by default
// the zero value of K, or whatever WithVacantKey names. A second reserved key
// (WithTombstoneKey) marks removed slots. Key types that cannot spare a
// second value record removals in a bit-vector that is only allocated once
// the first removal happens, so a container that is only ever inserted into
// pays one word of memory per key and nothing else. Reserved keys can not be
// stored and are rejected with ErrInvalidKey; wrap the key in Boxed when its
// domain has no spare value at all.
//
// # Probing
//
// The home slot of a key is hash(key) & (capacity-1) and probing is linear
// with wraparound. A lookup stops at a slot holding the key or at the first
// vacant slot. Removal leaves a tombstone: turning the slot vacant would hide
// every key that probed past it. Insertion remembers the first tombstone it
// passes and reuses it.
//
// # Growth
//
// The bucket array is a power of two no smaller than 16 slots. After an
// insertion, if occupied slots plus tombstones exceed 3/4 of the capacity
// the array is rebuilt: at double the capacity when the live elements alone
// are above half of that threshold, otherwise at the same capacity. A rebuild
// re-inserts every occupied slot and drops every tombstone, so heavy
// insert/remove churn compacts the array instead of growing it without bound.
//
// # Small containers
//
// Up to 8 elements are kept in arrays embedded in the container itself and
// searched linearly, without hashing and without any heap allocation. The
// 9th distinct key spills the inline elements into a 16 slot bucket array.
// A container never goes back to inline storage, except through Clear.
package openhash

import (
	"fmt"
	"math/bits"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// smallCapacity is the number of elements held in inline storage.
	smallCapacity = 8
	// minCapacity is the smallest bucket array. It must leave room for
	// smallCapacity+1 elements under the max load factor.
	minCapacity = 16

	// The max load factor, counting tombstones, is maxLoadNum/maxLoadDen.
	maxLoadNum = 3
	maxLoadDen = 4

	// maxAllocBytes bounds the combined size of the key and value arrays.
	maxAllocBytes = 1 << 47
)

// table is the engine shared by Set and Map. The zero value is not usable;
// call init.
type table[K comparable, V any] struct {
	hasher    Hasher[K]
	allocator Allocator[K, V]
	logger    *zap.Logger
	sentinels sentinels[K]

	// Inline storage used while the table is small. Elements are packed into
	// [0, used) and the remaining keys are vacant.
	smallKeys   [smallCapacity]K
	smallValues [smallCapacity]V

	// The bucket array used once the table is large. Empty while small.
	slots slots[K, V]
	// mask is len(slots.keys)-1 while large and is used to compute i%N with a
	// bitwise &.
	mask  uint64
	large bool

	// The number of occupied slots (i.e. the number of elements).
	used int
	// The number of tombstones in the bucket array. Always 0 while small.
	tombstones int

	// Counters reported by Stats.
	growths     int
	compactions int
	spills      int
}

func (t *table[K, V]) init(options []Option[K]) {
	var c config[K]
	for _, op := range options {
		op.apply(&c)
	}
	if c.hasTombstone && c.tombstone == c.vacant {
		panic(errors.AssertionFailedf("openhash: tombstone key %v equals the vacant key", c.vacant))
	}
	if c.hasher == nil {
		c.hasher = NewMapHash[K]()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	switch a := c.allocator.(type) {
	case nil:
		t.allocator = defaultAllocator[K, V]{}
	case Allocator[K, V]:
		t.allocator = a
	default:
		var v V
		panic(errors.AssertionFailedf("openhash: allocator %T does not allocate %T values", a, v))
	}

	t.hasher = c.hasher
	t.logger = c.logger
	t.sentinels = makeSentinels(c.vacant, c.tombstone, c.hasTombstone)
	t.resetSmall()
	t.checkInvariants()
}

// checkKey returns ErrInvalidKey if key is reserved.
func (t *table[K, V]) checkKey(key K) error {
	if t.sentinels.reserved(key) {
		return errors.Wrapf(ErrInvalidKey, "key %v is reserved", key)
	}
	return nil
}

// maxCapacity returns the largest bucket array the table may allocate.
func (t *table[K, V]) maxCapacity() int {
	var k K
	var v V
	limit := uint64(1) << (bits.UintSize - 2)
	if size := uint64(unsafe.Sizeof(k)) + uint64(unsafe.Sizeof(v)); size > 0 && maxAllocBytes/size < limit {
		limit = maxAllocBytes / size
	}
	// Round down to a power of two.
	return 1 << (bits.Len64(limit) - 1)
}

// capacityFor returns the smallest bucket array that holds n elements without
// exceeding the max load factor.
func (t *table[K, V]) capacityFor(n int) (int, error) {
	if n < 0 {
		return 0, errors.Wrapf(ErrCapacityOverflow, "negative capacity %d", n)
	}
	limit := t.maxCapacity()
	if n > limit/maxLoadDen*maxLoadNum {
		return 0, errors.Wrapf(ErrCapacityOverflow, "capacity %d exceeds the limit of %d", n, limit/maxLoadDen*maxLoadNum)
	}
	capacity := minCapacity
	for capacity/maxLoadDen*maxLoadNum < n {
		capacity <<= 1
	}
	return capacity, nil
}

// reserve ensures that the table holds n elements without growing.
func (t *table[K, V]) reserve(n int) error {
	capacity, err := t.capacityFor(n)
	if err != nil {
		return err
	}
	if !t.large && n <= smallCapacity {
		return nil
	}
	if t.large && capacity <= len(t.slots.keys) {
		return nil
	}
	t.resize(capacity)
	t.checkInvariants()
	return nil
}

// smallIndex returns the inline index of key, or -1.
func (t *table[K, V]) smallIndex(key K) int {
	for i := 0; i < t.used; i++ {
		if t.smallKeys[i] == key {
			return i
		}
	}
	return -1
}

// probe walks the probe sequence of key. It returns the index of the slot
// holding key, or -1, along with the first vacant or tombstone slot visited
// (-1 if the whole array was visited without seeing one).
func (t *table[K, V]) probe(key K) (index, free int) {
	free = -1
	i := t.hasher.Hash(key) & t.mask
	for n := uint64(0); n <= t.mask; n++ {
		k := t.slots.keys[i]
		switch t.slots.state(&t.sentinels, int(i), k) {
		case slotVacant:
			if free < 0 {
				free = int(i)
			}
			return -1, free
		case slotTombstone:
			if free < 0 {
				free = int(i)
			}
		default:
			if k == key {
				return int(i), free
			}
		}
		i = (i + 1) & t.mask
	}
	return -1, free
}

func (t *table[K, V]) get(key K) (value V, ok bool) {
	if t.sentinels.reserved(key) {
		return value, false
	}
	if !t.large {
		if i := t.smallIndex(key); i >= 0 {
			return t.smallValues[i], true
		}
		return value, false
	}
	if i, _ := t.probe(key); i >= 0 {
		return t.slots.values[i], true
	}
	return value, false
}

// insert adds key with value unless key is already present, in which case
// the existing value is returned and, if overwrite is set, replaced.
func (t *table[K, V]) insert(key K, value V, overwrite bool) (prev V, found bool, err error) {
	if err := t.checkKey(key); err != nil {
		return prev, false, err
	}

	if !t.large {
		if i := t.smallIndex(key); i >= 0 {
			prev = t.smallValues[i]
			if overwrite {
				t.smallValues[i] = value
			}
			return prev, true, nil
		}
		if t.used < smallCapacity {
			t.smallKeys[t.used] = key
			t.smallValues[t.used] = value
			t.used++
			t.checkInvariants()
			return prev, false, nil
		}
		t.resize(minCapacity)
	}

	i, free := t.probe(key)
	if i >= 0 {
		prev = t.slots.values[i]
		if overwrite {
			t.slots.values[i] = value
		}
		return prev, true, nil
	}
	if free < 0 {
		panic(errors.AssertionFailedf("openhash: no free slot for %v\n%s", key, t.debugString()))
	}

	if t.slots.state(&t.sentinels, free, t.slots.keys[free]) == slotTombstone {
		t.tombstones--
	}
	t.slots.fill(free, key, value)
	t.used++

	if (t.used+t.tombstones)*maxLoadDen > len(t.slots.keys)*maxLoadNum {
		t.rehash()
	}
	t.checkInvariants()
	return prev, false, nil
}

func (t *table[K, V]) remove(key K) (bool, error) {
	if err := t.checkKey(key); err != nil {
		return false, err
	}

	if !t.large {
		i := t.smallIndex(key)
		if i < 0 {
			return false, nil
		}
		// Keep the inline elements packed by moving the last one into the
		// hole.
		last := t.used - 1
		t.smallKeys[i], t.smallValues[i] = t.smallKeys[last], t.smallValues[last]
		var zero V
		t.smallKeys[last], t.smallValues[last] = t.sentinels.vacant, zero
		t.used--
		t.checkInvariants()
		return true, nil
	}

	i, _ := t.probe(key)
	if i < 0 {
		return false, nil
	}
	t.slots.bury(&t.sentinels, i)
	t.used--
	t.tombstones++
	t.checkInvariants()
	return true, nil
}

// rehash rebuilds the bucket array once occupied slots and tombstones reach
// the max load factor. The capacity doubles unless dropping the tombstones
// alone brings the load under half of the max load factor.
func (t *table[K, V]) rehash() {
	capacity := len(t.slots.keys)
	if t.used*maxLoadDen*2 > capacity*maxLoadNum {
		capacity *= 2
	}
	t.resize(capacity)
}

// resize moves every element into a new bucket array of the given capacity,
// dropping all tombstones. Called on a small table it spills the inline
// elements.
func (t *table[K, V]) resize(newCapacity int) {
	old := t.slots
	oldCapacity := len(old.keys)
	oldTombstones := t.tombstones
	wasLarge := t.large

	t.slots = slots[K, V]{
		keys:   t.allocator.AllocKeys(newCapacity),
		values: t.allocator.AllocValues(newCapacity),
	}
	if !t.sentinels.zeroVacant {
		vacate(&t.sentinels, t.slots.keys)
	}
	t.mask = uint64(newCapacity - 1)
	t.large = true
	t.tombstones = 0

	if wasLarge {
		for i, k := range old.keys {
			if old.state(&t.sentinels, i, k) != slotOccupied {
				continue
			}
			t.uncheckedPut(k, old.values[i])
		}
		t.allocator.FreeKeys(old.keys)
		t.allocator.FreeValues(old.values)
	} else {
		for i := 0; i < t.used; i++ {
			t.uncheckedPut(t.smallKeys[i], t.smallValues[i])
		}
		t.resetSmall()
		t.spills++
	}

	if newCapacity > oldCapacity {
		t.growths++
	} else {
		t.compactions++
	}

	if ce := t.logger.Check(zap.DebugLevel, "openhash: resize"); ce != nil {
		ce.Write(
			zap.Int("from", oldCapacity),
			zap.Int("to", newCapacity),
			zap.Int("used", t.used),
			zap.Int("dropped-tombstones", oldTombstones),
			zap.Bool("spill", !wasLarge),
		)
	}
}

// uncheckedPut inserts an element known not to be in the bucket array, which
// must not contain tombstones.
func (t *table[K, V]) uncheckedPut(key K, value V) {
	i := t.hasher.Hash(key) & t.mask
	for t.slots.keys[i] != t.sentinels.vacant {
		i = (i + 1) & t.mask
	}
	t.slots.keys[i] = key
	t.slots.values[i] = value
}

// compact rebuilds the bucket array at its current capacity if it holds any
// tombstones.
func (t *table[K, V]) compact() {
	if !t.large || t.tombstones == 0 {
		return
	}
	t.resize(len(t.slots.keys))
	t.checkInvariants()
}

// clear removes every element and returns the table to inline storage.
func (t *table[K, V]) clear() {
	capacity := len(t.slots.keys)
	if t.large {
		t.release()
	}
	t.resetSmall()
	t.used = 0
	t.tombstones = 0

	if ce := t.logger.Check(zap.DebugLevel, "openhash: clear"); ce != nil {
		ce.Write(zap.Int("released", capacity))
	}
	t.checkInvariants()
}

// release hands the bucket array back to the allocator.
func (t *table[K, V]) release() {
	t.allocator.FreeKeys(t.slots.keys)
	t.allocator.FreeValues(t.slots.values)
	t.slots = slots[K, V]{}
	t.mask = 0
	t.large = false
}

func (t *table[K, V]) resetSmall() {
	vacate(&t.sentinels, t.smallKeys[:])
	clear(t.smallValues[:])
}

// clone copies t into dst. The bucket arrays are allocated from t's
// allocator.
func (t *table[K, V]) clone(dst *table[K, V]) {
	*dst = *t
	if !t.large {
		return
	}
	n := len(t.slots.keys)
	dst.slots = slots[K, V]{
		keys:   t.allocator.AllocKeys(n),
		values: t.allocator.AllocValues(n),
	}
	copy(dst.slots.keys, t.slots.keys)
	copy(dst.slots.values, t.slots.values)
	if t.slots.holes != nil {
		dst.slots.holes = t.slots.holes.Clone()
	}
}

// all calls yield sequentially for each element in the table. If yield
// returns false, iteration stops. The table can be mutated during iteration,
// though there is no guarantee that the mutations will be visible to the
// iteration.
func (t *table[K, V]) all(yield func(key K, value V) bool) {
	if !t.large {
		// Snapshot the inline arrays.
		keys, values, n := t.smallKeys, t.smallValues, t.used
		for i := 0; i < n; i++ {
			if !yield(keys[i], values[i]) {
				return
			}
		}
		return
	}

	// Snapshot the bucket array so that iteration remains valid if the table
	// is resized during iteration.
	a := t.slots
	s := t.sentinels
	for i, k := range a.keys {
		if a.state(&s, i, k) != slotOccupied {
			continue
		}
		if !yield(k, a.values[i]) {
			return
		}
	}
}

// capacity returns the number of slots available to elements: the inline
// capacity while small, the bucket array length once large.
func (t *table[K, V]) capacity() int {
	if !t.large {
		return smallCapacity
	}
	return len(t.slots.keys)
}

func (t *table[K, V]) checkInvariants() {
	if invariants {
		if !t.large {
			if t.used > smallCapacity || t.tombstones != 0 || t.slots.keys != nil {
				panic(errors.AssertionFailedf("invariant failed: small table used=%d tombstones=%d\n%s",
					t.used, t.tombstones, t.debugString()))
			}
			for i := 0; i < smallCapacity; i++ {
				k := t.smallKeys[i]
				if i >= t.used {
					if k != t.sentinels.vacant {
						panic(errors.AssertionFailedf("invariant failed: inline slot %d past used=%d is not vacant\n%s",
							i, t.used, t.debugString()))
					}
					continue
				}
				if t.sentinels.reserved(k) {
					panic(errors.AssertionFailedf("invariant failed: inline slot %d holds a reserved key\n%s",
						i, t.debugString()))
				}
				for j := 0; j < i; j++ {
					if t.smallKeys[j] == k {
						panic(errors.AssertionFailedf("invariant failed: inline slots %d and %d hold %v\n%s",
							j, i, k, t.debugString()))
					}
				}
			}
			return
		}

		capacity := len(t.slots.keys)
		if capacity < minCapacity || capacity&(capacity-1) != 0 || uint64(capacity-1) != t.mask {
			panic(errors.AssertionFailedf("invariant failed: capacity=%d mask=%d", capacity, t.mask))
		}

		// For every occupied slot, verify the key is found at that slot.
		// Count the number of occupied and tombstone slots.
		var used, tombstones int
		for i, k := range t.slots.keys {
			switch t.slots.state(&t.sentinels, i, k) {
			case slotOccupied:
				if j, _ := t.probe(k); j != i {
					panic(errors.AssertionFailedf("invariant failed: slot(%d): %v found at %d\n%s",
						i, k, j, t.debugString()))
				}
				used++
			case slotTombstone:
				tombstones++
			}
		}
		if used != t.used {
			panic(errors.AssertionFailedf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if tombstones != t.tombstones {
			panic(errors.AssertionFailedf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
				tombstones, t.tombstones, t.debugString()))
		}
		if (used+tombstones)*maxLoadDen > capacity*maxLoadNum {
			panic(errors.AssertionFailedf("invariant failed: used=%d tombstones=%d exceed the max load of %d slots\n%s",
				used, tombstones, capacity, t.debugString()))
		}
	}
}

func (t *table[K, V]) debugString() string {
	var buf strings.Builder
	if !t.large {
		fmt.Fprintf(&buf, "small  used=%d\n", t.used)
		for i := 0; i < smallCapacity; i++ {
			fmt.Fprintf(&buf, "  %4d: %v\n", i, t.smallKeys[i])
		}
		return buf.String()
	}
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", len(t.slots.keys), t.used, t.tombstones)
	for i, k := range t.slots.keys {
		switch s := t.slots.state(&t.sentinels, i, k); s {
		case slotOccupied:
			h := t.hasher.Hash(k)
			fmt.Fprintf(&buf, "  %4d: %v [home=%d]\n", i, k, h&t.mask)
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, s)
		}
	}
	return buf.String()
}
