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

// Code that is generic over several container kinds, such as a benchmark
// driver, discovers the optional operations of a container through these
// interfaces instead of reflection. Set and Map implement all of them.

// Reserver is implemented by containers that can be pre-sized.
type Reserver interface {
	Reserve(n int) error
}

// Clearer is implemented by containers that can be emptied in place.
type Clearer interface {
	Clear()
}

// Compacter is implemented by containers that can reclaim removed slots on
// demand.
type Compacter interface {
	Compact()
}

var (
	_ Reserver  = (*Set[int])(nil)
	_ Clearer   = (*Set[int])(nil)
	_ Compacter = (*Set[int])(nil)
	_ Reserver  = (*Map[int, int])(nil)
	_ Clearer   = (*Map[int, int])(nil)
	_ Compacter = (*Map[int, int])(nil)
)

// TryReserve pre-sizes c for n elements if c is a Reserver, and is a no-op
// otherwise.
func TryReserve(c any, n int) error {
	if r, ok := c.(Reserver); ok {
		return r.Reserve(n)
	}
	return nil
}

// TryClear empties c if c is a Clearer, reporting whether it did.
func TryClear(c any) bool {
	if cl, ok := c.(Clearer); ok {
		cl.Clear()
		return true
	}
	return false
}

// TryCompact compacts c if c is a Compacter, reporting whether it did.
func TryCompact(c any) bool {
	if cp, ok := c.(Compacter); ok {
		cp.Compact()
		return true
	}
	return false
}
