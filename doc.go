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

// Package fph implements a dynamic perfect-hash map and set.
//
// Unlike an open-addressing table, which probes a handful of candidate slots
// per lookup, a fph.Map builds a small per-bucket displacement table at
// construction (and on every rebuild) so that a successful Find touches
// exactly one slot. The displacement table is produced by the bucket-chaining
// displacement algorithm popularized by Fox, Chen and Heath (FCH): keys are
// distributed into B buckets by a primary hash, buckets are resolved largest
// first, and each bucket is assigned the smallest per-bucket displacement
// that places all of its keys into free slots of an M-slot payload array.
//
// Two flavors share this builder:
//
//   - Map / Set (this package) keep a separate one-bit-per-slot occupancy
//     bitmap alongside the payload array. They support the higher of the two
//     max load factors.
//   - MetaMap / MetaSet replace the bitmap with a one-byte-per-slot array
//     that packs an occupancy flag and a 7-bit hash fingerprint. Negative
//     lookups reject on the metadata byte alone, without touching the
//     payload, at the cost of a lower max load factor (the fingerprint steals
//     addressing budget that would otherwise widen the displacement table).
//
// Both flavors are parameterized by a BucketParam integer type (uint8,
// uint16, uint32, or uint64) that bounds the per-bucket displacement range;
// narrower types pack denser but address fewer slots before construction
// reports a *CapacityExceededError.
//
// Basic usage:
//
//	m, err := fph.New[string, int, uint32](0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if _, _, err := m.Insert("a", 1); err != nil {
//		log.Fatal(err)
//	}
//	v, ok := m.Find("a")
//
// Mutation that cannot be satisfied without a perfect-hash rebuild (a new
// key whose slot collides under the current parameters, or growth past the
// configured max load factor) triggers one transparently. The operations
// that may rebuild (Insert and the methods built on it, Reserve, and
// Rehash) can fail; a failed rebuild leaves the table exactly as it was
// before that rebuild.
//
// The table is not safe for concurrent use; all synchronization is the
// caller's responsibility. There is no on-disk persistence, no stable
// iteration order across rebuilds, and no pointer stability across any
// operation that may relocate slots.
package fph
