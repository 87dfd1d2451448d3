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
	"maps"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// toBuiltinMap returns the elements as a map[K]V. Useful for testing.
func (m *Map[K, V]) toBuiltinMap() map[K]V {
	return maps.Collect(m.All())
}

// randElement returns some element of the map. Iteration order is not random
// so neither is the element, but it is good enough to pick victims.
func (m *Map[K, V]) randElement() (key K, value V, ok bool) {
	m.All()(func(k K, v V) bool {
		key, value = k, v
		ok = true
		return false
	})
	return
}

func TestMapBasic(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		const count = 100

		e := make(map[int]int)
		require.EqualValues(t, 0, m.Len())

		// Non-existent.
		for i := 1; i <= count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
		}

		// Insert.
		for i := 1; i <= count; i++ {
			_, replaced, err := m.Put(i, i+count)
			require.NoError(t, err)
			require.False(t, replaced)
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, i, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
		}

		// Update.
		for i := 1; i <= count; i++ {
			prev, replaced, err := m.Put(i, i+2*count)
			require.NoError(t, err)
			require.True(t, replaced)
			require.EqualValues(t, i+count, prev)
			e[i] = i + 2*count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+2*count, v)
			require.EqualValues(t, count, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
		}

		// Delete.
		for i := 1; i <= count; i++ {
			ok, err := m.Delete(i)
			require.NoError(t, err)
			require.True(t, ok)
			delete(e, i)
			require.EqualValues(t, count-i, m.Len())
			require.False(t, m.Contains(i))
			require.Equal(t, e, m.toBuiltinMap())

			ok, err = m.Delete(i)
			require.NoError(t, err)
			require.False(t, ok)
		}
	}

	t.Run("normal", func(t *testing.T) {
		test(t, NewMap[int, int]())
	})

	t.Run("tombstone-key", func(t *testing.T) {
		test(t, NewMap[int, int](WithTombstoneKey(-1)))
	})

	t.Run("degenerate", func(t *testing.T) {
		testDegenerate := func(t *testing.T, h uint64) {
			m := NewMap[int, int](WithHashFunc(func(key int) uint64 {
				return h
			}))
			test(t, m)
		}

		for _, v := range []uint64{0, ^uint64(0)} {
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				testDegenerate(t, v)
			})
		}
		for i := 0; i < 10; i++ {
			v := rand.Uint64()
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				testDegenerate(t, v)
			})
		}
	})
}

func TestMapRandom(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		e := make(map[int]int)
		for i := 0; i < 10000; i++ {
			switch r := rand.Float64(); {
			case r < 0.5: // 50% inserts
				k, v := rand.Intn(2000)+1, rand.Int()
				_, replaced, err := m.Put(k, v)
				require.NoError(t, err)
				_, existed := e[k]
				require.Equal(t, existed, replaced)
				e[k] = v
			case r < 0.65: // 15% updates
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					v := rand.Int()
					_, _, err := m.Put(k, v)
					require.NoError(t, err)
					e[k] = v
				}
			case r < 0.80: // 15% deletes
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					ok, err := m.Delete(k)
					require.NoError(t, err)
					require.True(t, ok)
					delete(e, k)
				}
			case r < 0.95: // 15% lookups
				if k, v, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.EqualValues(t, e[k], v)
				}
			case r < 0.999: // compact and iterate
				m.Compact()
				require.Equal(t, e, m.toBuiltinMap())
			default:
				m.Clear()
				clear(e)
			}
			require.EqualValues(t, len(e), m.Len())

			st := m.Stats()
			if !st.Small {
				require.LessOrEqual(t, (st.Len+st.Tombstones)*maxLoadDen, st.Capacity*maxLoadNum)
			}
		}
		require.Equal(t, e, m.toBuiltinMap())
	}

	t.Run("normal", func(t *testing.T) {
		test(t, NewMap[int, int]())
	})

	t.Run("degenerate", func(t *testing.T) {
		for _, v := range []uint64{0, ^uint64(0)} {
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				test(t, NewMap[int, int](WithHashFunc(func(key int) uint64 {
					return v
				})))
			})
		}
	})
}

func TestMapOverwrite(t *testing.T) {
	m := NewMap[uint32, uint32]()

	_, replaced, err := m.Put(5, 50)
	require.NoError(t, err)
	require.False(t, replaced)

	prev, replaced, err := m.Put(5, 99)
	require.NoError(t, err)
	require.True(t, replaced)
	require.EqualValues(t, 50, prev)

	v, ok := m.Get(5)
	require.True(t, ok)
	require.EqualValues(t, 99, v)
	require.Equal(t, 1, m.Len())
}

func TestMapInvalidKey(t *testing.T) {
	m := NewMap[string, int]()
	for i := 0; i < 20; i++ {
		_, _, err := m.Put(fmt.Sprint(i), i)
		require.NoError(t, err)
	}
	before := m.toBuiltinMap()

	_, _, err := m.Put("", 1)
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = m.Delete("")
	require.ErrorIs(t, err, ErrInvalidKey)
	require.False(t, m.Contains(""))
	_, ok := m.Get("")
	require.False(t, ok)

	require.Equal(t, before, m.toBuiltinMap())
	require.Equal(t, 20, m.Len())
}

func TestMapIterateMutate(t *testing.T) {
	m := NewMap[int, int]()
	for i := 1; i <= 100; i++ {
		_, _, err := m.Put(i, i)
		require.NoError(t, err)
	}
	e := m.toBuiltinMap()
	require.EqualValues(t, 100, m.Len())
	require.EqualValues(t, 100, len(e))

	// Iterate over the map, resizing it periodically. We should see all of
	// the elements that were originally in the map because All takes a
	// snapshot of the slots before iterating.
	vals := make(map[int]int)
	for k, v := range m.All() {
		if (k % 10) == 0 {
			m.t.resize(2 * len(m.t.slots.keys))
		}
		vals[k] = v
	}
	require.EqualValues(t, e, vals)
}

func TestMapIterateStop(t *testing.T) {
	m := NewMap[int, int]()
	for i := 1; i <= 50; i++ {
		_, _, err := m.Put(i, -i)
		require.NoError(t, err)
	}

	var n int
	for range m.All() {
		n++
		if n == 3 {
			break
		}
	}
	require.Equal(t, 3, n)

	var keys, values int
	for k := range m.Keys() {
		keys += k
	}
	for v := range m.Values() {
		values += v
	}
	require.Equal(t, 50*51/2, keys)
	require.Equal(t, -keys, values)
}

func TestMapClear(t *testing.T) {
	testCases := []struct {
		count int
	}{
		{count: 5},
		{count: 1000},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprint(c.count), func(t *testing.T) {
			m := NewMap[int, int]()
			for i := 1; i <= c.count; i++ {
				_, _, err := m.Put(i, i)
				require.NoError(t, err)
			}

			m.Clear()
			require.EqualValues(t, 0, m.Len())
			require.True(t, m.Stats().Small)
			require.Equal(t, smallCapacity, m.Stats().Capacity)

			for range m.All() {
				require.Fail(t, "should not iterate")
			}
			for i := 1; i <= c.count; i++ {
				require.False(t, m.Contains(i))
			}
		})
	}
}

func TestMapClone(t *testing.T) {
	for _, count := range []int{4, 100} {
		t.Run(fmt.Sprint(count), func(t *testing.T) {
			m := NewMap[int, string]()
			for i := 1; i <= count; i++ {
				_, _, err := m.Put(i, fmt.Sprint(i))
				require.NoError(t, err)
			}
			_, err := m.Delete(1)
			require.NoError(t, err)

			c := m.Clone()
			require.Equal(t, m.toBuiltinMap(), c.toBuiltinMap())

			_, _, err = c.Put(2, "two")
			require.NoError(t, err)
			_, err = c.Delete(3)
			require.NoError(t, err)
			_, _, err = c.Put(1, "one")
			require.NoError(t, err)

			v, ok := m.Get(2)
			require.True(t, ok)
			require.Equal(t, "2", v)
			require.True(t, m.Contains(3))
			require.False(t, m.Contains(1))
			require.Equal(t, count-1, m.Len())
			require.Equal(t, count, c.Len())
		})
	}
}

type countingAllocator[K comparable, V any] struct {
	allocKeys, freeKeys     int
	allocValues, freeValues int
}

func (a *countingAllocator[K, V]) AllocKeys(n int) []K {
	a.allocKeys++
	return make([]K, n)
}

func (a *countingAllocator[K, V]) AllocValues(n int) []V {
	a.allocValues++
	return make([]V, n)
}

func (a *countingAllocator[K, V]) FreeKeys(_ []K) {
	a.freeKeys++
}

func (a *countingAllocator[K, V]) FreeValues(_ []V) {
	a.freeValues++
}

func TestMapAllocator(t *testing.T) {
	a := &countingAllocator[int, int]{}
	m := NewMap[int, int](WithAllocator[int, int](a))

	for i := 1; i <= 100; i++ {
		_, _, err := m.Put(i, i)
		require.NoError(t, err)
	}

	// 16 -> 32 -> 64 -> 128 -> 256
	const expected = 5
	require.EqualValues(t, expected, a.allocKeys)
	require.EqualValues(t, expected, a.allocValues)
	require.EqualValues(t, expected-1, a.freeKeys)
	require.EqualValues(t, expected-1, a.freeValues)
	require.EqualValues(t, expected, m.Stats().Growths)
	require.EqualValues(t, 256, m.Stats().Capacity)

	m.Close()
	require.EqualValues(t, expected, a.freeKeys)
	require.EqualValues(t, expected, a.freeValues)

	m.Close()
	require.EqualValues(t, expected, a.freeKeys)
}

func TestMapChurnCompacts(t *testing.T) {
	m := NewMap[int, int]()
	const live = 10
	for i := 1; i <= 100000; i++ {
		_, _, err := m.Put(i, i)
		require.NoError(t, err)
		if i > live {
			ok, err := m.Delete(i - live)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
	require.Equal(t, live, m.Len())
	st := m.Stats()
	require.LessOrEqual(t, st.Capacity, 32)
	require.Greater(t, st.Compactions, 0)
	for i := 100000 - live + 1; i <= 100000; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
