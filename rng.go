package fph

import "math/rand/v2"

// defaultSeedSource produces the 64-bit seeds the builder tries during
// construction. It is auto-seeded per process, not deterministic; callers
// that need reproducible builds should supply WithSeedSource.
func defaultSeedSource() uint64 {
	return rand.Uint64()
}

// KeyRNG synthesizes keys from K's domain. Spec calls for this as a hook
// a builder may use to probe for displacements in degenerate cases where
// enumerating displacements directly stalls; the shipped builder in this
// package does not call it (see DESIGN.md), but it is part of the public
// surface so a caller supplying a custom builder has somewhere to plug one
// in, and so WithKeyRNG has a concrete type to accept.
type KeyRNG[K any] interface {
	Next() K
}

type integerKeyRNG[K Integer] struct{}

func (integerKeyRNG[K]) Next() K {
	return K(rand.Uint64())
}

// NewIntegerKeyRNG returns the default KeyRNG for fixed-width numeric key
// types, per spec's "for keys of fixed-width numeric type, a default RNG
// suffices."
func NewIntegerKeyRNG[K Integer]() KeyRNG[K] {
	return integerKeyRNG[K]{}
}
