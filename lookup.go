package fph

// FindAs performs a transparent lookup: it probes m using a foreign key
// type L, given a Hasher[L] that hashes L into the same digest space as
// m's own Hasher[K] and an Equivalence[K,L] that compares a stored K
// against l directly, without materializing a K. This is the free-
// function form transparent lookup takes in Go, since a method cannot
// introduce a type parameter beyond its receiver's.
func FindAs[K comparable, V any, D BucketParam, L any](
	m *Map[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) (V, bool) {
	s := slotFor[L, D](lh, l, m.seed0, m.seed1, m.needsSecondHash,
		m.bucketBits, m.bucketMask, m.slotMask, m.disp)
	if m.filled.test(int(s)) && eq.Equal(m.payload[s].Key, l) {
		return m.payload[s].Value, true
	}
	var zero V
	return zero, false
}

// ContainsAs is FindAs without the value.
func ContainsAs[K comparable, V any, D BucketParam, L any](
	m *Map[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) bool {
	_, ok := FindAs(m, l, lh, eq)
	return ok
}

// CountAs returns 1 if l is present under eq, 0 otherwise.
func CountAs[K comparable, V any, D BucketParam, L any](
	m *Map[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) int {
	if ContainsAs(m, l, lh, eq) {
		return 1
	}
	return 0
}

// AtAs is FindAs but returns ErrKeyNotPresent instead of false.
func AtAs[K comparable, V any, D BucketParam, L any](
	m *Map[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) (V, error) {
	if v, ok := FindAs(m, l, lh, eq); ok {
		return v, nil
	}
	var zero V
	return zero, ErrKeyNotPresent
}

// FindMetaAs is FindAs for the meta variant: the metadata byte's
// fingerprint is recomputed under lh/m's secondary seed before the
// payload is read, same two-phase rejection as Find.
func FindMetaAs[K comparable, V any, D BucketParam, L any](
	m *MetaMap[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) (V, bool) {
	s := slotFor[L, D](lh, l, m.seed0, m.seed1, m.needsSecondHash,
		m.bucketBits, m.bucketMask, m.slotMask, m.disp)
	h := lh.Hash(l, m.fingerSeed)
	want := uint8(h&metaFingerMask) | metaOccupiedBit
	if m.meta[s] == want && eq.Equal(m.payload[s].Key, l) {
		return m.payload[s].Value, true
	}
	var zero V
	return zero, false
}

// ContainsMetaAs is FindMetaAs without the value.
func ContainsMetaAs[K comparable, V any, D BucketParam, L any](
	m *MetaMap[K, V, D], l L, lh Hasher[L], eq Equivalence[K, L],
) bool {
	_, ok := FindMetaAs(m, l, lh, eq)
	return ok
}
