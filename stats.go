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

// Stats is a read-only snapshot of a container's layout, intended for tuning
// and tests.
type Stats struct {
	// Len is the number of elements.
	Len int
	// Capacity is the number of slots: the inline capacity while Small,
	// otherwise the length of the bucket array.
	Capacity int
	// Tombstones is the number of removed slots awaiting the next rebuild.
	Tombstones int
	// Small is set while the elements live in inline storage.
	Small bool
	// LoadFactor is Len/Capacity.
	LoadFactor float64
	// Growths counts rebuilds that increased the capacity, including the
	// spill out of inline storage.
	Growths int
	// Compactions counts rebuilds at an unchanged capacity.
	Compactions int
	// Spills counts moves from inline storage to a bucket array.
	Spills int
}

func (t *table[K, V]) stats() Stats {
	capacity := t.capacity()
	return Stats{
		Len:         t.used,
		Capacity:    capacity,
		Tombstones:  t.tombstones,
		Small:       !t.large,
		LoadFactor:  float64(t.used) / float64(capacity),
		Growths:     t.growths,
		Compactions: t.compactions,
		Spills:      t.spills,
	}
}

// binCounts returns a histogram of displacements: counts[d] is the number of
// elements stored d slots past their home slot, so the sum of the counts is
// the number of elements and counts[d] elements need d+1 probes to be found.
// While small the displacement of an element is its inline index.
func (t *table[K, V]) binCounts() []int {
	if !t.large {
		counts := make([]int, t.used)
		for i := range counts {
			counts[i] = 1
		}
		return counts
	}

	var counts []int
	for i, k := range t.slots.keys {
		if t.slots.state(&t.sentinels, i, k) != slotOccupied {
			continue
		}
		home := t.hasher.Hash(k) & t.mask
		d := int((uint64(i) - home) & t.mask)
		for len(counts) <= d {
			counts = append(counts, 0)
		}
		counts[d]++
	}
	return counts
}
