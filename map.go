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

// Map is a dynamic perfect-hash associative container: a successful Find
// touches exactly one slot, at the cost of an occasional full rebuild of
// its internal parameter bundle when an insert cannot be satisfied by the
// current one. It is not safe for concurrent use; all synchronization is
// the caller's responsibility.
//
// K is the key type, V the value type, and D the BucketParam integer type
// that bounds the width of the per-bucket displacement table. Use a
// narrower D to pack the table more densely; use a wider D to address
// more slots and reach a higher load factor.
type Map[K comparable, V any, D BucketParam] struct {
	cfg config[K, V, D]

	seed0           uint64
	seed1           uint64
	needsSecondHash bool
	bucketBits      uint
	bucketMask      uint32
	slotMask        uint64

	disp    []D
	payload []Slot[K, V]
	filled  bitmap

	size  int
	stats Stats
}

// New constructs an empty Map sized for at least capacityHint entries
// without requiring an immediate rebuild on the first few inserts. A
// capacityHint of 0 is valid and builds a minimal one-slot table.
func New[K comparable, V any, D BucketParam](capacityHint int, opts ...option[K, V, D]) (*Map[K, V, D], error) {
	m := &Map[K, V, D]{
		cfg: newConfig[K, V, D](maxLoadFactorUpperLimit(paramBits[D]()), opts),
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

// NewFromSeq constructs a Map from a sequence of key/value pairs. Pairs are
// added with Insert, so for a repeated key the first pair is kept and later
// pairs for that key are ignored.
func NewFromSeq[K comparable, V any, D BucketParam](seq iter.Seq2[K, V], opts ...option[K, V, D]) (*Map[K, V, D], error) {
	m, err := New[K, V, D](0, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.InsertSeq(seq); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map[K, V, D]) upperLimit() float64 {
	return maxLoadFactorUpperLimit(paramBits[D]())
}

func (m *Map[K, V, D]) maxCount() int {
	return int(float64(m.slotCount()) * m.cfg.maxLoadFactor)
}

func (m *Map[K, V, D]) bucketCount() int { return int(m.bucketMask) + 1 }
func (m *Map[K, V, D]) slotCount() int   { return int(m.slotMask) + 1 }

// slot computes the slot index a key currently maps to under this table's
// installed parameter bundle. It does not check occupancy.
func (m *Map[K, V, D]) slot(k K) uint64 {
	return slotFor[K, D](m.cfg.hasher, k, m.seed0, m.seed1, m.needsSecondHash,
		m.bucketBits, m.bucketMask, m.slotMask, m.disp)
}

// Find returns the value stored for k and true, or the zero value and
// false if k is absent.
func (m *Map[K, V, D]) Find(k K) (V, bool) {
	s := m.slot(k)
	if m.filled.test(int(s)) && m.payload[s].Key == k {
		return m.payload[s].Value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether k is present.
func (m *Map[K, V, D]) Contains(k K) bool {
	_, ok := m.Find(k)
	return ok
}

// Count returns 1 if k is present, 0 otherwise (present for symmetry with
// multi-key associative container APIs; this table never holds duplicates).
func (m *Map[K, V, D]) Count(k K) int {
	if m.Contains(k) {
		return 1
	}
	return 0
}

// At returns the value stored for k, or ErrKeyNotPresent if k is absent.
func (m *Map[K, V, D]) At(k K) (V, error) {
	if v, ok := m.Find(k); ok {
		return v, nil
	}
	var zero V
	return zero, ErrKeyNotPresent
}

// GetUnchecked returns the value at k's computed slot without checking
// occupancy or key equality first. Callers must have already verified
// (via Find/Contains) that k is present; calling this on an absent key
// returns unspecified payload, not an error.
func (m *Map[K, V, D]) GetUnchecked(k K) V {
	return m.payload[m.slot(k)].Value
}

// Insert adds k/v if k is absent, or leaves the table unchanged and
// returns the existing value if k is already present. The returned bool
// is true iff the insert happened.
func (m *Map[K, V, D]) Insert(k K, v V) (V, bool, error) {
	s := m.slot(k)
	if m.filled.test(int(s)) {
		if m.payload[s].Key == k {
			return m.payload[s].Value, false, nil
		}
		// Collision under the current parameter bundle: must rebuild.
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
	m.filled.setBit(int(s))
	m.size++
	return v, true, nil
}

// TryEmplace constructs v at k only if k is absent; it is a synonym for
// Insert's semantics (Insert already only ever sets a value for an absent
// key), kept as a distinct method name for callers transcribing the
// familiar associative-container operation list.
func (m *Map[K, V, D]) TryEmplace(k K, v V) (V, bool, error) {
	return m.Insert(k, v)
}

// InsertOrAssign inserts k/v if absent, or overwrites the existing value
// if present. The returned bool is true iff the key was newly inserted.
func (m *Map[K, V, D]) InsertOrAssign(k K, v V) (bool, error) {
	s := m.slot(k)
	if m.filled.test(int(s)) && m.payload[s].Key == k {
		m.payload[s].Value = v
		return false, nil
	}
	_, inserted, err := m.Insert(k, v)
	if err != nil {
		return false, err
	}
	if inserted {
		// Insert may have rebuilt, so the slot must be re-resolved
		// before the overwrite is applied.
		m.payload[m.slot(k)].Value = v
	}
	return true, nil
}

// InsertSeq inserts every pair from seq, stopping and returning the first
// error encountered (if any); pairs already inserted before the error
// remain in the table.
func (m *Map[K, V, D]) InsertSeq(seq iter.Seq2[K, V]) error {
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
// triggers a rebuild; it is O(1).
func (m *Map[K, V, D]) Erase(k K) bool {
	s := m.slot(k)
	if !m.filled.test(int(s)) || m.payload[s].Key != k {
		return false
	}
	m.filled.clearBit(int(s))
	var zero Slot[K, V]
	m.payload[s] = zero
	m.size--
	return true
}

// Cursor identifies a slot returned by FindCursor, for use with
// EraseCursor. It is invalidated by any rebuild.
type Cursor uint32

// EraseCursor removes the entry at a cursor previously returned by
// FindCursor. It reports whether the cursor still referred to an occupied
// slot.
func (m *Map[K, V, D]) EraseCursor(c Cursor) bool {
	s := int(c)
	if s < 0 || s >= len(m.payload) || !m.filled.test(s) {
		return false
	}
	m.filled.clearBit(s)
	var zero Slot[K, V]
	m.payload[s] = zero
	m.size--
	return true
}

// FindCursor is Find's counterpart for callers that want to erase the
// entry they just looked up without hashing the key a second time.
func (m *Map[K, V, D]) FindCursor(k K) (Cursor, bool) {
	s := m.slot(k)
	if m.filled.test(int(s)) && m.payload[s].Key == k {
		return Cursor(s), true
	}
	return 0, false
}

// Clear empties the table, retaining its current capacity.
func (m *Map[K, V, D]) Clear() {
	m.filled.fillZero()
	var zero Slot[K, V]
	for i := range m.payload {
		m.payload[i] = zero
	}
	m.size = 0
}

// Len returns the number of stored entries.
func (m *Map[K, V, D]) Len() int { return m.size }

// IsEmpty reports whether the table holds no entries.
func (m *Map[K, V, D]) IsEmpty() bool { return m.size == 0 }

// LoadFactor returns size / slot_count.
func (m *Map[K, V, D]) LoadFactor() float64 {
	return float64(m.size) / float64(m.slotCount())
}

// BucketCount returns the number of buckets in the current parameter
// bundle.
func (m *Map[K, V, D]) BucketCount() int { return m.bucketCount() }

// SlotCount returns the number of slots in the current parameter bundle.
func (m *Map[K, V, D]) SlotCount() int { return m.slotCount() }

// MaxLoadFactor returns the configured target load factor.
func (m *Map[K, V, D]) MaxLoadFactor() float64 { return m.cfg.maxLoadFactor }

// SetMaxLoadFactor updates the target load factor for future rebuilds. It
// does not itself trigger a rebuild. If f is outside (0, upperLimit] it
// returns an error and leaves the setting unchanged.
func (m *Map[K, V, D]) SetMaxLoadFactor(f float64) error {
	limit := m.upperLimit()
	if f <= 0 || f > limit {
		return fmt.Errorf("fph: max load factor %v out of range (0, %v]", f, limit)
	}
	m.cfg.maxLoadFactor = f
	return nil
}

// Stats reports build-time statistics from the most recent (re)build.
func (m *Map[K, V, D]) Stats() Stats { return m.stats }

// Reserve ensures the slot array is sized for at least n entries under the
// max load factor, rebuilding now if necessary. An insert whose slot is
// taken by another key still triggers a rebuild.
func (m *Map[K, V, D]) Reserve(n int) error {
	if n <= m.maxCount() {
		return nil
	}
	keys, vals := m.snapshot()
	return m.rebuild(keys, vals, n)
}

// Rehash forces a rebuild sized for at least n entries (or the current
// size, whichever is larger), even if the current parameters would still
// satisfy the load factor contract, which reclaims slack left behind by
// non-rebuilding Erase calls.
func (m *Map[K, V, D]) Rehash(n int) error {
	if n < m.size {
		n = m.size
	}
	keys, vals := m.snapshot()
	return m.rebuild(keys, vals, n)
}

// All returns an iterator over every stored key/value pair. Order is
// unspecified but deterministic for a fixed parameter bundle; any rebuild
// invalidates iterators in flight.
func (m *Map[K, V, D]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.payload {
			if !m.filled.test(i) {
				continue
			}
			if !yield(m.payload[i].Key, m.payload[i].Value) {
				return
			}
		}
	}
}

// Swap exchanges the entire internal state of m and other in O(1).
func (m *Map[K, V, D]) Swap(other *Map[K, V, D]) {
	*m, *other = *other, *m
}

// Clone returns a deep copy of m; mutating the clone never affects m and
// vice versa.
func (m *Map[K, V, D]) Clone() (*Map[K, V, D], error) {
	out := &Map[K, V, D]{
		cfg:             m.cfg,
		seed0:           m.seed0,
		seed1:           m.seed1,
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

	words, err := m.cfg.allocator.AllocWords(len(m.filled.words))
	if err != nil {
		m.cfg.allocator.FreeDisplacement(disp)
		m.cfg.allocator.FreePayload(payload)
		return nil, wrapAllocErr("clone filled bitmap", err)
	}
	copy(words, m.filled.words)
	out.filled = newBitmap(words, m.filled.n)

	return out, nil
}

// Close releases every buffer held by m back to its allocator. m must not
// be used after Close, except to be discarded.
func (m *Map[K, V, D]) Close() {
	m.cfg.allocator.FreeDisplacement(m.disp)
	m.cfg.allocator.FreePayload(m.payload)
	m.cfg.allocator.FreeWords(m.filled.words)
	m.disp = nil
	m.payload = nil
	m.filled = bitmap{}
}

func (m *Map[K, V, D]) snapshot() ([]K, []V) {
	keys := make([]K, 0, m.size)
	vals := make([]V, 0, m.size)
	for i := range m.payload {
		if m.filled.test(i) {
			keys = append(keys, m.payload[i].Key)
			vals = append(vals, m.payload[i].Value)
		}
	}
	return keys, vals
}

func (m *Map[K, V, D]) rebuildWithNew(k K, v V) error {
	keys, vals := m.snapshot()
	keys = append(keys, k)
	vals = append(vals, v)
	return m.rebuild(keys, vals, len(keys))
}

// rebuild discards the current parameter bundle (if any) and installs a
// fresh one holding keys/vals, sized with enough headroom for at least
// capacityHint entries. On failure the table's prior state is left
// untouched.
func (m *Map[K, V, D]) rebuild(keys []K, vals []V, capacityHint int) error {
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
	wordsNeeded := wordsForBits(int(res.slots), 1)
	newWords, err := m.cfg.allocator.AllocWords(wordsNeeded)
	if err != nil {
		m.cfg.allocator.FreeDisplacement(newDisp)
		m.cfg.allocator.FreePayload(newPayload)
		return wrapAllocErr("rebuild filled bitmap", err)
	}
	newFilled := newBitmap(newWords, int(res.slots))

	for i, k := range keys {
		s := res.slotOf[i]
		newPayload[s] = Slot[K, V]{Key: k, Value: vals[i]}
		newFilled.setBit(int(s))
	}

	if m.disp != nil {
		m.cfg.allocator.FreeDisplacement(m.disp)
	}
	if m.payload != nil {
		m.cfg.allocator.FreePayload(m.payload)
	}
	if m.filled.words != nil {
		m.cfg.allocator.FreeWords(m.filled.words)
	}

	m.seed0 = res.seed0
	m.seed1 = res.seed1
	m.needsSecondHash = res.needsSecondHash
	m.bucketBits = res.bucketBits
	m.bucketMask = res.buckets - 1
	m.slotMask = uint64(res.slots - 1)
	m.disp = newDisp
	m.payload = newPayload
	m.filled = newFilled
	m.size = len(keys)
	m.stats = stats
	return nil
}

// checkInvariants re-verifies every invariant this table promises after
// a public operation; it is expensive (O(slot_count)) and intended for
// tests, not steady-state use.
func (m *Map[K, V, D]) checkInvariants() error {
	count := m.filled.popcount()
	if count != m.size {
		return fmt.Errorf("fph: size %d does not match popcount(filled) %d", m.size, count)
	}
	if m.size > m.maxCount() {
		return fmt.Errorf("fph: size %d exceeds max count %d at load factor %v", m.size, m.maxCount(), m.cfg.maxLoadFactor)
	}
	seen := make(map[uint64]K, m.size)
	for i := range m.payload {
		if !m.filled.test(i) {
			continue
		}
		k := m.payload[i].Key
		s := m.slot(k)
		if int(s) != i {
			return fmt.Errorf("fph: key at slot %d computes to slot %d", i, s)
		}
		if other, ok := seen[s]; ok {
			return fmt.Errorf("fph: slot %d occupied by both %v and %v", s, other, k)
		}
		seen[s] = k
	}
	return nil
}

func (m *Map[K, V, D]) debugString() string {
	return fmt.Sprintf("fph.Map{size=%d buckets=%d slots=%d loadFactor=%.4f maxLoadFactor=%.4f}",
		m.size, m.bucketCount(), m.slotCount(), m.LoadFactor(), m.cfg.maxLoadFactor)
}
