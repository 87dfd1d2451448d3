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

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Each slot of a bucket array is in one of three states. There is no
// per-slot metadata: the state is recovered from the key stored in the slot.
//
//	  vacant: key == sentinels.vacant
//	tombstone: key == sentinels.tombstone, or the slot's bit is set in holes
//	 occupied: anything else
//
// A vacant slot terminates probing. A tombstone continues probing but may be
// reused by an insertion.
type slotState uint8

const (
	slotVacant slotState = iota
	slotTombstone
	slotOccupied
)

func (s slotState) String() string {
	switch s {
	case slotVacant:
		return "vacant"
	case slotTombstone:
		return "tombstone"
	case slotOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("slotState(%d)", uint8(s))
	}
}

// sentinels holds the reserved keys of a container. The reserved keys can
// never be stored.
type sentinels[K comparable] struct {
	vacant       K
	tombstone    K
	hasTombstone bool
	// zeroVacant is set when vacant is the zero value of K, in which case
	// freshly allocated arrays are already vacant.
	zeroVacant bool
}

func makeSentinels[K comparable](vacant, tombstone K, hasTombstone bool) sentinels[K] {
	var zero K
	return sentinels[K]{
		vacant:       vacant,
		tombstone:    tombstone,
		hasTombstone: hasTombstone,
		zeroVacant:   vacant == zero,
	}
}

func (s *sentinels[K]) reserved(key K) bool {
	return key == s.vacant || (s.hasTombstone && key == s.tombstone)
}

// slots is a bucket array. keys and values are co-indexed and have the same
// power of two length.
type slots[K comparable, V any] struct {
	keys   []K
	values []V
	// holes marks tombstones when the container has no tombstone key. It is
	// nil until the first removal.
	holes *bitset.BitSet
}

// state returns the state of slot i. The caller passes keys[i] to avoid a
// second load on the probe path.
func (a *slots[K, V]) state(s *sentinels[K], i int, key K) slotState {
	switch {
	case key == s.vacant:
		return slotVacant
	case s.hasTombstone:
		if key == s.tombstone {
			return slotTombstone
		}
	case a.holes != nil && a.holes.Test(uint(i)):
		return slotTombstone
	}
	return slotOccupied
}

// bury turns the occupied slot i into a tombstone and releases its value.
func (a *slots[K, V]) bury(s *sentinels[K], i int) {
	var zero V
	a.values[i] = zero
	if s.hasTombstone {
		a.keys[i] = s.tombstone
		return
	}
	// The stale key stays in place until the next rebuild; the hole bit makes
	// probing skip it.
	if a.holes == nil {
		a.holes = bitset.New(uint(len(a.keys)))
	}
	a.holes.Set(uint(i))
}

// fill stores key and value in the vacant or tombstone slot i.
func (a *slots[K, V]) fill(i int, key K, value V) {
	a.keys[i] = key
	a.values[i] = value
	if a.holes != nil {
		a.holes.Clear(uint(i))
	}
}

// vacate marks every slot in keys as vacant.
func vacate[K comparable](s *sentinels[K], keys []K) {
	if s.zeroVacant {
		clear(keys)
		return
	}
	for i := range keys {
		keys[i] = s.vacant
	}
}
