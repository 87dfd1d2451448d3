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
	"encoding/binary"
	"hash/fnv"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	metro "github.com/dgryski/go-metro"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/constraints"
)

// Hasher maps a key to a 64-bit digest. Implementations must be
// deterministic: equal keys always produce equal digests. Containers make no
// assumption about digest quality beyond uniformity, so two containers that
// differ only in their Hasher hold the same elements and differ only in
// performance.
type Hasher[K comparable] interface {
	Hash(key K) uint64
}

// HashFunc adapts an ordinary function to the Hasher interface.
type HashFunc[K comparable] func(key K) uint64

// Hash implements Hasher.
func (f HashFunc[K]) Hash(key K) uint64 {
	return f(key)
}

// MapHash hashes any comparable key with the runtime's hash for that type.
// It is the default Hasher. The zero value is not usable; construct one with
// NewMapHash.
type MapHash[K comparable] struct {
	seed maphash.Seed
}

// NewMapHash returns a MapHash with a random seed.
func NewMapHash[K comparable]() MapHash[K] {
	return MapHash[K]{seed: maphash.MakeSeed()}
}

// Hash implements Hasher.
func (h MapHash[K]) Hash(key K) uint64 {
	return maphash.Comparable(h.seed, key)
}

// IdentityHash returns the key's bit pattern. Sequential keys land in
// sequential slots, which is ideal for dense integer domains and pathological
// for keys sharing their low bits.
type IdentityHash[K constraints.Integer] struct{}

// Hash implements Hasher.
func (IdentityHash[K]) Hash(key K) uint64 {
	return uint64(key)
}

// MixHash scrambles the key with the splitmix64 finalizer.
type MixHash[K constraints.Integer] struct{}

// Hash implements Hasher.
func (MixHash[K]) Hash(key K) uint64 {
	return splitmix64(uint64(key))
}

// splitmix64 is the output function of the SplitMix64 generator. See
// https://prng.di.unimi.it/splitmix64.c.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// FNVHash applies FNV-1a to the little-endian bytes of the key.
type FNVHash[K constraints.Integer] struct{}

// Hash implements Hasher.
func (FNVHash[K]) Hash(key K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// XXH3Hash applies XXH3 to the little-endian bytes of the key.
type XXH3Hash[K constraints.Integer] struct{}

// Hash implements Hasher.
func (XXH3Hash[K]) Hash(key K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxh3.Hash(buf[:])
}

// DigestHash takes the leading 8 bytes of the BLAKE2b-256 digest of the
// key's little-endian bytes. It is by far the slowest hasher and exists for
// keys drawn by an adversary.
type DigestHash[K constraints.Integer] struct{}

// Hash implements Hasher.
func (DigestHash[K]) Hash(key K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// StringFNVHash applies FNV-1a to the bytes of a string key.
type StringFNVHash[K ~string] struct{}

// Hash implements Hasher.
func (StringFNVHash[K]) Hash(key K) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// StringXXH3Hash applies XXH3 to the bytes of a string key.
type StringXXH3Hash[K ~string] struct{}

// Hash implements Hasher.
func (StringXXH3Hash[K]) Hash(key K) uint64 {
	return xxh3.HashString(string(key))
}

// StringXXHash applies XXH64 to the bytes of a string key.
type StringXXHash[K ~string] struct{}

// Hash implements Hasher.
func (StringXXHash[K]) Hash(key K) uint64 {
	return xxhash.Sum64String(string(key))
}

// StringMetroHash applies MetroHash64 to the bytes of a string key.
type StringMetroHash[K ~string] struct {
	Seed uint64
}

// Hash implements Hasher.
func (h StringMetroHash[K]) Hash(key K) uint64 {
	return metro.Hash64([]byte(key), h.Seed)
}

// StringDigestHash takes the leading 8 bytes of the BLAKE2b-256 digest of a
// string key.
type StringDigestHash[K ~string] struct{}

// Hash implements Hasher.
func (StringDigestHash[K]) Hash(key K) uint64 {
	sum := blake2b.Sum256([]byte(key))
	return binary.LittleEndian.Uint64(sum[:8])
}
