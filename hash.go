package fph

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hasher produces a 64-bit digest of a key under a given seed. Implementers
// must ensure that distinct seeds yield statistically independent digests;
// the builder relies on this to retry construction under a fresh seed when a
// given one fails to produce a valid displacement table.
type Hasher[K any] interface {
	Hash(key K, seed uint64) uint64
}

type seededHasher[K any] struct {
	fn func(key K, seed uint64) uint64
}

func (h seededHasher[K]) Hash(key K, seed uint64) uint64 { return h.fn(key, seed) }

// NewSeededHasher adapts a native seeded hash function (one that already
// takes a seed) to the Hasher interface.
func NewSeededHasher[K any](fn func(key K, seed uint64) uint64) Hasher[K] {
	return seededHasher[K]{fn}
}

type plainHasher[K any] struct {
	fn func(key K) uint64
}

// Hash mixes the plain digest with seed using two rounds of splitmix64's
// finalizer, so that distinct seeds still yield statistically independent
// mappings even though fn itself ignores the seed.
func (h plainHasher[K]) Hash(key K, seed uint64) uint64 {
	return mix(h.fn(key) ^ seed)
}

// NewPlainHasher adapts a plain (unseeded) hash function to the Hasher
// interface by mixing its output with the seed.
func NewPlainHasher[K any](fn func(key K) uint64) Hasher[K] {
	return plainHasher[K]{fn}
}

// mix runs two rounds of splitmix64's finalizer over x. Two rounds (rather
// than one) are used because a single round leaves low-order bits weakly
// mixed when x itself came from XOR-ing a seed into a plain hash's output.
func mix(x uint64) uint64 {
	x = splitmix64(x)
	x = splitmix64(x)
	return x
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// Integer constrains the key types for which NewIntegerHasher is available.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// NewIntegerHasher returns a default Hasher for fixed-width numeric keys. It
// does not allocate and does not need an external hash library: the key's
// bits are mixed directly with the seed.
func NewIntegerHasher[K Integer]() Hasher[K] {
	return NewSeededHasher(func(k K, seed uint64) uint64 {
		return mix(uint64(k) ^ seed)
	})
}

// NewBytesHasher returns a default Hasher for []byte keys, built on xxhash
// (the same non-cryptographic hash family used elsewhere in the ecosystem
// for hash-table keys) seeded via mix.
func NewBytesHasher() Hasher[[]byte] {
	return NewSeededHasher(func(k []byte, seed uint64) uint64 {
		return mix(xxhash.Sum64(k) ^ seed)
	})
}

// NewStringHasher returns a default Hasher for string keys, built on xxhash.
func NewStringHasher() Hasher[string] {
	return NewSeededHasher(func(k string, seed uint64) uint64 {
		return mix(xxhash.Sum64String(k) ^ seed)
	})
}

// NewMurmur3StringHasher returns an alternate default Hasher for string
// keys, built on murmur3 (the seeded hash family several MurmurHash-based
// perfect-hash implementations in the wider ecosystem use) instead of
// xxhash.
func NewMurmur3StringHasher() Hasher[string] {
	return NewSeededHasher(func(k string, seed uint64) uint64 {
		return murmur3.Sum64WithSeed([]byte(k), uint32(seed)) ^ mix(seed)
	})
}

// NewMurmur3BytesHasher is NewMurmur3StringHasher's []byte counterpart.
func NewMurmur3BytesHasher() Hasher[[]byte] {
	return NewSeededHasher(func(k []byte, seed uint64) uint64 {
		return murmur3.Sum64WithSeed(k, uint32(seed)) ^ mix(seed)
	})
}

// defaultHasherFor returns the built-in Hasher for K if K is one of the
// key types this package knows a default for (string, []byte, or any
// fixed-width integer type), or nil otherwise. A nil result means the
// caller must supply WithHasher; New reports that as an error rather than
// panicking.
func defaultHasherFor[K comparable]() Hasher[K] {
	if h, ok := any(NewStringHasher()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewBytesHasher()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[int]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[int8]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[int16]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[int32]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[int64]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uint]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uint8]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uint16]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uint32]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uint64]()).(Hasher[K]); ok {
		return h
	}
	if h, ok := any(NewIntegerHasher[uintptr]()).(Hasher[K]); ok {
		return h
	}
	return nil
}

// Equivalence decides whether a foreign lookup key L refers to the same
// logical key as a stored K, without constructing a K. It underlies the
// transparent-lookup helpers (FindAs, ContainsAs, ...): a table built over
// string keys can be probed with a []byte or a strings.Builder-backed view
// without an intermediate allocation, provided the caller supplies a Hasher
// that hashes L to the same digest space as K and an Equivalence that
// compares the two directly.
type Equivalence[K any, L any] interface {
	Equal(k K, l L) bool
}

type equivalenceFunc[K any, L any] func(k K, l L) bool

func (f equivalenceFunc[K, L]) Equal(k K, l L) bool { return f(k, l) }

// EquivalenceFunc adapts a plain comparison function to the Equivalence
// interface.
func EquivalenceFunc[K any, L any](fn func(k K, l L) bool) Equivalence[K, L] {
	return equivalenceFunc[K, L](fn)
}
