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

import (
	"fmt"
	"iter"
)

const (
	metaOccupiedBit   = 0x80
	metaFingerMask    = 0x7F
	metaFingerSeedXOR = 0xA24BAED4963EE407
)

// MetaMap is the meta-variant counterpart to Map: instead of a separate
// occupancy bitmap, every slot carries one metadata byte packing a 1-bit
// occupancy flag and a 7-bit hash fingerprint under a secondary seed. A
// negative lookup rejects on the metadata byte alone without touching the
// payload array, at the cost of a strictly lower max load factor ceiling
// than Map carries at the same BucketParam width (the fingerprint eats
// addressing budget that would otherwise widen the displacement table).
type MetaMap[K comparable, V any, D BucketParam] struct {
	cfg config[K, V, D]

	seed0           uint64
	seed1           uint64
	fingerSeed      uint64
	needsSecondHash bool
	bucketBits      uint
	bucketMask      uint32
	slotMask        uint64

	disp    []D
	payload []Slot[K, V]
	meta    []uint8

	size  int
	stats Stats
}

// NewMeta constructs an empty MetaMap sized for at least capacityHint
// entries.
func NewMeta[K comparable, V any, D BucketParam](capacityHint int, opts ...option[K, V, D]) (*MetaMap[K, V, D], error) {
	m := &MetaMap[K, V, D]{
		cfg: newConfig[K, V, D](metaMaxLoadFactorUpperLimit(paramBits[D]()), opts),
	}
	if m.cfg.hasher == nil {
		m.cfg.hasher = defaultHasherFor[K]()
	}
	if err := m.cfg.requireHasher(); err != nil {
		return nil, err
	}
	if err := m.rebuild(nil, nil, capacityHint); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetaFromSeq constructs a MetaMap from a sequence of key/value pairs.
func NewMetaFromSeq[K comparable, V any, D BucketParam](seq iter.Seq2[K, V], opts ...option[K, V, D]) (*MetaMap[K, V, D], error) {
	m, err := NewMeta[K, V, D](0, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.InsertSeq(seq); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MetaMap[K, V, D]) upperLimit() float64 {
	return metaMaxLoadFactorUpperLimit(paramBits[D]())
}

func (m *MetaMap[K, V, D]) maxCount() int {
	return int(float64(m.slotCount()) * m.cfg.maxLoadFactor)
}

func (m *MetaMap[K, V, D]) bucketCount() int { return int(m.bucketMask) + 1 }
func (m *MetaMap[K, V, D]) slotCount() int   { return int(m.slotMask) + 1 }

func (m *MetaMap[K, V, D]) slot(k K) uint64 {
	return slotFor[K, D](m.cfg.hasher, k, m.seed0, m.seed1, m.needsSecondHash,
		m.bucketBits, m.bucketMask, m.slotMask, m.disp)
}

func (m *MetaMap[K, V, D]) fingerprint(k K) uint8 {
	h := m.cfg.hasher.Hash(k, m.fingerSeed)
	return uint8(h&metaFingerMask) | metaOccupiedBit
}

// Find returns the value stored for k and true, or the zero value and
// false if k is absent. The metadata byte rejects most negative lookups
// without reading the payload array.
func (m *MetaMap[K, V, D]) Find(k K) (V, bool) {
	s := m.slot(k)
	want := m.fingerprint(k)
	if m.meta[s] == want && m.payload[s].Key == k {
		return m.payload[s].Value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether k is present.
func (m *MetaMap[K, V, D]) Contains(k K) bool {
	_, ok := m.Find(k)
	return ok
}

// Count returns 1 if k is present, 0 otherwise.
func (m *MetaMap[K, V, D]) Count(k K) int {
	if m.Contains(k) {
		return 1
	}
	return 0
}

// At returns the value stored for k, or ErrKeyNotPresent if k is absent.
func (m *MetaMap[K, V, D]) At(k K) (V, error) {
	if v, ok := m.Find(k); ok {
		return v, nil
	}
	var zero V
	return zero, ErrKeyNotPresent
}

// GetUnchecked returns the value at k's computed slot without checking
// the metadata byte or key equality first.
func (m *MetaMap[K, V, D]) GetUnchecked(k K) V {
	return m.payload[m.slot(k)].Value
}

// Insert adds k/v if k is absent, or leaves the table unchanged and
// returns the existing value if k is already present.
func (m *MetaMap[K, V, D]) Insert(k K, v V) (V, bool, error) {
	s := m.slot(k)
	want := m.fingerprint(k)
	if m.meta[s] != 0 {
		if m.meta[s] == want && m.payload[s].Key == k {
			return m.payload[s].Value, false, nil
		}
		if err := m.rebuildWithNew(k, v); err != nil {
			var zero V
			return zero, false, err
		}
		return v, true, nil
	}
	if m.size+1 > m.maxCount() {
		if err := m.rebuildWithNew(k, v); err != nil {
			var zero V
			return zero, false, err
		}
		return v, true, nil
	}
	m.payload[s] = Slot[K, V]{Key: k, Value: v}
	m.meta[s] = want
	m.size++
	return v, true, nil
}

// TryEmplace is a synonym for Insert, kept for the familiar associative-
// container operation name.
func (m *MetaMap[K, V, D]) TryEmplace(k K, v V) (V, bool, error) {
	return m.Insert(k, v)
}

// InsertOrAssign inserts k/v if absent, or overwrites the existing value
// if present.
func (m *MetaMap[K, V, D]) InsertOrAssign(k K, v V) (bool, error) {
	s := m.slot(k)
	want := m.fingerprint(k)
	if m.meta[s] == want && m.payload[s].Key == k {
		m.payload[s].Value = v
		return false, nil
	}
	_, inserted, err := m.Insert(k, v)
	if err != nil {
		return false, err
	}
	if inserted {
		m.payload[m.slot(k)].Value = v
	}
	return true, nil
}

// InsertSeq inserts every pair from seq, stopping at the first error.
func (m *MetaMap[K, V, D]) InsertSeq(seq iter.Seq2[K, V]) error {
	var firstErr error
	seq(func(k K, v V) bool {
		if _, _, err := m.Insert(k, v); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// Erase removes k if present and reports whether it was present. It never
// triggers a rebuild.
func (m *MetaMap[K, V, D]) Erase(k K) bool {
	s := m.slot(k)
	want := m.fingerprint(k)
	if m.meta[s] != want || m.payload[s].Key != k {
		return false
	}
	m.meta[s] = 0
	var zero Slot[K, V]
	m.payload[s] = zero
	m.size--
	return true
}

// FindCursor is Find's counterpart for callers that want to erase the
// matched slot without hashing k a second time.
func (m *MetaMap[K, V, D]) FindCursor(k K) (Cursor, bool) {
	s := m.slot(k)
	if m.meta[s] == m.fingerprint(k) && m.payload[s].Key == k {
		return Cursor(s), true
	}
	return 0, false
}

// EraseCursor removes the entry at a cursor previously returned by
// FindCursor. It reports whether the cursor still referred to an occupied
// slot; cursors are invalidated by any rebuild.
func (m *MetaMap[K, V, D]) EraseCursor(c Cursor) bool {
	s := uint64(c)
	if m.meta[s]&metaOccupiedBit == 0 {
		return false
	}
	m.meta[s] = 0
	var zero Slot[K, V]
	m.payload[s] = zero
	m.size--
	return true
}

// Clear empties the table, retaining its current capacity.
func (m *MetaMap[K, V, D]) Clear() {
	for i := range m.meta {
		m.meta[i] = 0
	}
	var zero Slot[K, V]
	for i := range m.payload {
		m.payload[i] = zero
	}
	m.size = 0
}

// Len returns the number of stored entries.
func (m *MetaMap[K, V, D]) Len() int { return m.size }

// IsEmpty reports whether the table holds no entries.
func (m *MetaMap[K, V, D]) IsEmpty() bool { return m.size == 0 }

// LoadFactor returns size / slot_count.
func (m *MetaMap[K, V, D]) LoadFactor() float64 {
	return float64(m.size) / float64(m.slotCount())
}

// BucketCount returns the number of buckets in the current parameter
// bundle.
func (m *MetaMap[K, V, D]) BucketCount() int { return m.bucketCount() }

// SlotCount returns the number of slots in the current parameter bundle.
func (m *MetaMap[K, V, D]) SlotCount() int { return m.slotCount() }

// MaxLoadFactor returns the configured target load factor.
func (m *MetaMap[K, V, D]) MaxLoadFactor() float64 { return m.cfg.maxLoadFactor }

// SetMaxLoadFactor updates the target load factor for future rebuilds.
func (m *MetaMap[K, V, D]) SetMaxLoadFactor(f float64) error {
	limit := m.upperLimit()
	if f <= 0 || f > limit {
		return fmt.Errorf("fph: max load factor %v out of range (0, %v]", f, limit)
	}
	m.cfg.maxLoadFactor = f
	return nil
}

// Stats reports build-time statistics from the most recent (re)build.
func (m *MetaMap[K, V, D]) Stats() Stats { return m.stats }

// Reserve ensures the slot array is sized for at least n entries under the
// max load factor, rebuilding now if necessary. An insert whose slot is
// taken by another key still triggers a rebuild.
func (m *MetaMap[K, V, D]) Reserve(n int) error {
	if n <= m.maxCount() {
		return nil
	}
	keys, vals := m.snapshot()
	return m.rebuild(keys, vals, n)
}

// Rehash forces a rebuild sized for at least n entries.
func (m *MetaMap[K, V, D]) Rehash(n int) error {
	if n < m.size {
		n = m.size
	}
	keys, vals := m.snapshot()
	return m.rebuild(keys, vals, n)
}

// All returns an iterator over every stored key/value pair.
func (m *MetaMap[K, V, D]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.payload {
			if m.meta[i]&metaOccupiedBit == 0 {
				continue
			}
			if !yield(m.payload[i].Key, m.payload[i].Value) {
				return
			}
		}
	}
}

// Swap exchanges the entire internal state of m and other in O(1).
func (m *MetaMap[K, V, D]) Swap(other *MetaMap[K, V, D]) {
	*m, *other = *other, *m
}

// Clone returns a deep copy of m.
func (m *MetaMap[K, V, D]) Clone() (*MetaMap[K, V, D], error) {
	out := &MetaMap[K, V, D]{
		cfg:             m.cfg,
		seed0:           m.seed0,
		seed1:           m.seed1,
		fingerSeed:      m.fingerSeed,
		needsSecondHash: m.needsSecondHash,
		bucketBits:      m.bucketBits,
		bucketMask:      m.bucketMask,
		slotMask:        m.slotMask,
		size:            m.size,
		stats:           m.stats,
	}
	disp, err := m.cfg.allocator.AllocDisplacement(len(m.disp))
	if err != nil {
		return nil, wrapAllocErr("clone displacement", err)
	}
	copy(disp, m.disp)
	out.disp = disp

	payload, err := m.cfg.allocator.AllocPayload(len(m.payload))
	if err != nil {
		m.cfg.allocator.FreeDisplacement(disp)
		return nil, wrapAllocErr("clone payload", err)
	}
	copy(payload, m.payload)
	out.payload = payload

	out.meta = make([]uint8, len(m.meta))
	copy(out.meta, m.meta)

	return out, nil
}

// Close releases every buffer held by m back to its allocator.
func (m *MetaMap[K, V, D]) Close() {
	m.cfg.allocator.FreeDisplacement(m.disp)
	m.cfg.allocator.FreePayload(m.payload)
	m.disp = nil
	m.payload = nil
	m.meta = nil
}

func (m *MetaMap[K, V, D]) snapshot() ([]K, []V) {
	keys := make([]K, 0, m.size)
	vals := make([]V, 0, m.size)
	for i := range m.payload {
		if m.meta[i]&metaOccupiedBit != 0 {
			keys = append(keys, m.payload[i].Key)
			vals = append(vals, m.payload[i].Value)
		}
	}
	return keys, vals
}

func (m *MetaMap[K, V, D]) rebuildWithNew(k K, v V) error {
	keys, vals := m.snapshot()
	keys = append(keys, k)
	vals = append(vals, v)
	return m.rebuild(keys, vals, len(keys))
}

func (m *MetaMap[K, V, D]) rebuild(keys []K, vals []V, capacityHint int) error {
	cfg := buildConfig[K, D]{
		hasher:        m.cfg.hasher,
		bucketFactor:  m.cfg.bucketFactor,
		maxLoadFactor: m.cfg.maxLoadFactor,
		seedSource:    m.cfg.seedSource,
		seedRetries:   m.cfg.seedRetries,
		factorRetries: m.cfg.factorRetries,
		sizeHint:      capacityHint,
	}

	res, stats, err := buildPerfectHash[K, D](keys, cfg)
	if err != nil {
		return err
	}

	newDisp, err := m.cfg.allocator.AllocDisplacement(len(res.disp))
	if err != nil {
		return wrapAllocErr("rebuild displacement", err)
	}
	copy(newDisp, res.disp)

	newPayload, err := m.cfg.allocator.AllocPayload(int(res.slots))
	if err != nil {
		m.cfg.allocator.FreeDisplacement(newDisp)
		return wrapAllocErr("rebuild payload", err)
	}
	newMeta := make([]uint8, res.slots)

	fingerSeed := mix(res.seed0 ^ metaFingerSeedXOR)

	for i, k := range keys {
		s := res.slotOf[i]
		newPayload[s] = Slot[K, V]{Key: k, Value: vals[i]}
		h := m.cfg.hasher.Hash(k, fingerSeed)
		newMeta[s] = uint8(h&metaFingerMask) | metaOccupiedBit
	}

	if m.disp != nil {
		m.cfg.allocator.FreeDisplacement(m.disp)
	}
	if m.payload != nil {
		m.cfg.allocator.FreePayload(m.payload)
	}

	m.seed0 = res.seed0
	m.seed1 = res.seed1
	m.fingerSeed = fingerSeed
	m.needsSecondHash = res.needsSecondHash
	m.bucketBits = res.bucketBits
	m.bucketMask = res.buckets - 1
	m.slotMask = uint64(res.slots - 1)
	m.disp = newDisp
	m.payload = newPayload
	m.meta = newMeta
	m.size = len(keys)
	m.stats = stats
	return nil
}

// checkInvariants re-verifies every invariant this table promises.
func (m *MetaMap[K, V, D]) checkInvariants() error {
	count := 0
	seen := make(map[uint64]K, m.size)
	for i := range m.meta {
		if m.meta[i]&metaOccupiedBit == 0 {
			continue
		}
		count++
		k := m.payload[i].Key
		s := m.slot(k)
		if int(s) != i {
			return fmt.Errorf("fph: key at slot %d computes to slot %d", i, s)
		}
		want := m.fingerprint(k)
		if m.meta[i] != want {
			return fmt.Errorf("fph: slot %d fingerprint %x does not match recomputed %x", i, m.meta[i], want)
		}
		if other, ok := seen[s]; ok {
			return fmt.Errorf("fph: slot %d occupied by both %v and %v", s, other, k)
		}
		seen[s] = k
	}
	if count != m.size {
		return fmt.Errorf("fph: size %d does not match occupied metadata count %d", m.size, count)
	}
	if m.size > m.maxCount() {
		return fmt.Errorf("fph: size %d exceeds max count %d at load factor %v", m.size, m.maxCount(), m.cfg.maxLoadFactor)
	}
	return nil
}

func (m *MetaMap[K, V, D]) debugString() string {
	return fmt.Sprintf("fph.MetaMap{size=%d buckets=%d slots=%d loadFactor=%.4f maxLoadFactor=%.4f}",
		m.size, m.bucketCount(), m.slotCount(), m.LoadFactor(), m.cfg.maxLoadFactor)
}

// MetaSet is the meta-variant counterpart to Set.
type MetaSet[K comparable, D BucketParam] struct {
	m *MetaMap[K, struct{}, D]
}

// NewMetaSet constructs an empty MetaSet sized for at least capacityHint
// entries.
func NewMetaSet[K comparable, D BucketParam](capacityHint int, opts ...option[K, struct{}, D]) (*MetaSet[K, D], error) {
	m, err := NewMeta[K, struct{}, D](capacityHint, opts...)
	if err != nil {
		return nil, err
	}
	return &MetaSet[K, D]{m: m}, nil
}

// Insert adds k if absent.
func (s *MetaSet[K, D]) Insert(k K) (bool, error) {
	_, inserted, err := s.m.Insert(k, struct{}{})
	return inserted, err
}

// Contains reports whether k is present.
func (s *MetaSet[K, D]) Contains(k K) bool { return s.m.Contains(k) }

// Count returns 1 if k is present, 0 otherwise.
func (s *MetaSet[K, D]) Count(k K) int { return s.m.Count(k) }

// Erase removes k if present and reports whether it was present.
func (s *MetaSet[K, D]) Erase(k K) bool { return s.m.Erase(k) }

// Clear empties the set, retaining its current capacity.
func (s *MetaSet[K, D]) Clear() { s.m.Clear() }

// Len returns the number of stored keys.
func (s *MetaSet[K, D]) Len() int { return s.m.Len() }

// IsEmpty reports whether the set holds no keys.
func (s *MetaSet[K, D]) IsEmpty() bool { return s.m.IsEmpty() }

// LoadFactor returns size / slot_count.
func (s *MetaSet[K, D]) LoadFactor() float64 { return s.m.LoadFactor() }

// BucketCount returns the number of buckets in the current parameter
// bundle.
func (s *MetaSet[K, D]) BucketCount() int { return s.m.BucketCount() }

// SlotCount returns the number of slots in the current parameter bundle.
func (s *MetaSet[K, D]) SlotCount() int { return s.m.SlotCount() }

// Reserve ensures the slot array is sized for at least n keys under the
// max load factor, rebuilding now if necessary.
func (s *MetaSet[K, D]) Reserve(n int) error { return s.m.Reserve(n) }

// Rehash forces a rebuild sized for at least n keys.
func (s *MetaSet[K, D]) Rehash(n int) error { return s.m.Rehash(n) }

// Stats reports build-time statistics from the most recent (re)build.
func (s *MetaSet[K, D]) Stats() Stats { return s.m.Stats() }

// All returns an iterator over every stored key.
func (s *MetaSet[K, D]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Close releases every buffer held by s back to its allocator.
func (s *MetaSet[K, D]) Close() { s.m.Close() }
