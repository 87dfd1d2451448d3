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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxed(t *testing.T) {
	s := NewSet[Boxed[uint8]](WithHasher(BoxedHasher[uint8](IdentityHash[uint8]{})))

	// Every uint8, zero included, can be stored once boxed.
	for i := 0; i <= math.MaxUint8; i++ {
		added, err := s.Insert(Box(uint8(i)))
		require.NoError(t, err)
		require.True(t, added)
	}
	require.Equal(t, math.MaxUint8+1, s.Len())
	require.True(t, s.Contains(Box[uint8](0)))

	_, err := s.Insert(Boxed[uint8]{})
	require.ErrorIs(t, err, ErrInvalidKey)
	require.False(t, s.Contains(Boxed[uint8]{}))

	var sum int
	for b := range s.All() {
		sum += int(b.Unbox())
	}
	require.Equal(t, math.MaxUint8*(math.MaxUint8+1)/2, sum)

	removed, err := s.Remove(Box[uint8](0))
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, s.Contains(Box[uint8](0)))
}
