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

package fph

import "iter"

// Set is a dynamic perfect-hash set, built over the same parameter bundle
// and builder as Map by storing struct{} values. Its operations mirror
// Map's with the value argument dropped wherever it would otherwise be
// present.
type Set[K comparable, D BucketParam] struct {
	m *Map[K, struct{}, D]
}

// NewSet constructs an empty Set sized for at least capacityHint entries.
func NewSet[K comparable, D BucketParam](capacityHint int, opts ...option[K, struct{}, D]) (*Set[K, D], error) {
	m, err := New[K, struct{}, D](capacityHint, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[K, D]{m: m}, nil
}

// NewSetFromSeq constructs a Set from a sequence of keys.
func NewSetFromSeq[K comparable, D BucketParam](seq iter.Seq[K], opts ...option[K, struct{}, D]) (*Set[K, D], error) {
	s, err := NewSet[K, D](0, opts...)
	if err != nil {
		return nil, err
	}
	for k := range seq {
		if _, _, err := s.m.Insert(k, struct{}{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Insert adds k if absent. The returned bool is true iff the insert
// happened.
func (s *Set[K, D]) Insert(k K) (bool, error) {
	_, inserted, err := s.m.Insert(k, struct{}{})
	return inserted, err
}

// Contains reports whether k is present.
func (s *Set[K, D]) Contains(k K) bool { return s.m.Contains(k) }

// Count returns 1 if k is present, 0 otherwise.
func (s *Set[K, D]) Count(k K) int { return s.m.Count(k) }

// Erase removes k if present and reports whether it was present.
func (s *Set[K, D]) Erase(k K) bool { return s.m.Erase(k) }

// Clear empties the set, retaining its current capacity.
func (s *Set[K, D]) Clear() { s.m.Clear() }

// Len returns the number of stored keys.
func (s *Set[K, D]) Len() int { return s.m.Len() }

// IsEmpty reports whether the set holds no keys.
func (s *Set[K, D]) IsEmpty() bool { return s.m.IsEmpty() }

// LoadFactor returns size / slot_count.
func (s *Set[K, D]) LoadFactor() float64 { return s.m.LoadFactor() }

// BucketCount returns the number of buckets in the current parameter
// bundle.
func (s *Set[K, D]) BucketCount() int { return s.m.BucketCount() }

// SlotCount returns the number of slots in the current parameter bundle.
func (s *Set[K, D]) SlotCount() int { return s.m.SlotCount() }

// Reserve ensures the slot array is sized for at least n keys under the
// max load factor, rebuilding now if necessary.
func (s *Set[K, D]) Reserve(n int) error { return s.m.Reserve(n) }

// Rehash forces a rebuild sized for at least n keys.
func (s *Set[K, D]) Rehash(n int) error { return s.m.Rehash(n) }

// Stats reports build-time statistics from the most recent (re)build.
func (s *Set[K, D]) Stats() Stats { return s.m.Stats() }

// All returns an iterator over every stored key. Order is unspecified but
// deterministic for a fixed parameter bundle.
func (s *Set[K, D]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Clone returns a deep copy of s.
func (s *Set[K, D]) Clone() (*Set[K, D], error) {
	m, err := s.m.Clone()
	if err != nil {
		return nil, err
	}
	return &Set[K, D]{m: m}, nil
}

// Swap exchanges the entire internal state of s and other in O(1).
func (s *Set[K, D]) Swap(other *Set[K, D]) { s.m.Swap(other.m) }

// Close releases every buffer held by s back to its allocator.
func (s *Set[K, D]) Close() { s.m.Close() }
