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

import "fmt"

// config holds every tunable a Map/MetaMap accepts at construction. It is
// built up by applying Option values in order and then validated once.
type config[K comparable, V any, D BucketParam] struct {
	hasher        Hasher[K]
	allocator     Allocator[K, V, D]
	bucketFactor  float64
	maxLoadFactor float64
	seedSource    func() uint64
	keyRNG        KeyRNG[K]
	seedRetries   int
	factorRetries int
}

// option provides an interface to do work on a config while a table is
// being created.
type option[K comparable, V any, D BucketParam] interface {
	apply(c *config[K, V, D])
}

// Option is the exported alias implementers use when writing a With*
// constructor outside this package (none of its methods are exported, so a
// caller can only obtain one from this package's With* functions).
type Option[K comparable, V any, D BucketParam] = option[K, V, D]

type optionFunc[K comparable, V any, D BucketParam] func(*config[K, V, D])

func (f optionFunc[K, V, D]) apply(c *config[K, V, D]) { f(c) }

// WithHasher is an option to specify the Hasher to use for a table's keys.
// Required for any K that is not a fixed-width integer, []byte, or string,
// since there is no default to fall back on for an arbitrary comparable
// type.
func WithHasher[K comparable, V any, D BucketParam](h Hasher[K]) option[K, V, D] {
	return optionFunc[K, V, D](func(c *config[K, V, D]) { c.hasher = h })
}

// WithAllocator is an option to specify the Allocator to use for a table.
func WithAllocator[K comparable, V any, D BucketParam](a Allocator[K, V, D]) option[K, V, D] {
	return optionFunc[K, V, D](func(c *config[K, V, D]) { c.allocator = a })
}

// WithBucketFactor sets the target keys-per-bucket ratio c used at build
// time (default 2.0). Higher values shrink the displacement table at the
// cost of more per-bucket search work; the internal floor is 1.5.
func WithBucketFactor[K comparable, V any, D BucketParam](c float64) option[K, V, D] {
	return optionFunc[K, V, D](func(cfg *config[K, V, D]) { cfg.bucketFactor = c })
}

// WithMaxLoadFactor sets the target load factor used to size the slot
// array. A value outside (0, upperLimit] for D's width is ignored at
// construction and the default of 0.9 × upperLimit is used instead.
func WithMaxLoadFactor[K comparable, V any, D BucketParam](f float64) option[K, V, D] {
	return optionFunc[K, V, D](func(cfg *config[K, V, D]) { cfg.maxLoadFactor = f })
}

// WithSeedSource overrides the RNG used to pick candidate build seeds.
// Supplying a deterministic source makes table construction reproducible,
// which is useful for tests that need a fixed parameter bundle.
func WithSeedSource[K comparable, V any, D BucketParam](src func() uint64) option[K, V, D] {
	return optionFunc[K, V, D](func(c *config[K, V, D]) { c.seedSource = src })
}

// WithKeyRNG supplies a key-domain random generator for builders that
// synthesize probe keys in degenerate cases. The shipped builder does not
// call it (see DESIGN.md); it is accepted and stored for custom builders
// and forward compatibility.
func WithKeyRNG[K comparable, V any, D BucketParam](rng KeyRNG[K]) option[K, V, D] {
	return optionFunc[K, V, D](func(c *config[K, V, D]) { c.keyRNG = rng })
}

// WithBuildRetries overrides the builder's attempt budget: seedRetries
// distinct seeds are tried per bucket-factor value before the bucket
// factor is halved, up to factorRetries times, before the build reports
// BuildFailureError.
func WithBuildRetries[K comparable, V any, D BucketParam](seedRetries, factorRetries int) option[K, V, D] {
	return optionFunc[K, V, D](func(c *config[K, V, D]) {
		c.seedRetries = seedRetries
		c.factorRetries = factorRetries
	})
}

// Slot is one payload entry: a key and its value. The occupancy bit lives
// in a separate bitmap (Map/Set) or metadata byte (MetaMap/MetaSet), never
// inline in Slot, so Slot's zero value is always a valid empty placeholder.
type Slot[K comparable, V any] struct {
	Key   K
	Value V
}

// Allocator abstracts storage acquisition for a table's three buffer
// kinds: the payload slice, the per-bucket displacement slice, and raw
// uint64 word buffers backing Map's occupancy bitmap. Every reserve/
// rehash/copy path routes those buffers through it, so a caller can plug in
// an arena, a pool, or an instrumented counting wrapper. MetaMap's
// per-slot metadata byte array is allocated with make and does not go
// through the Allocator.
//
// If the allocator manages memory manually and needs slots/displacement/
// word buffers freed, the table's Close method must be called to ensure
// the Free* methods run.
type Allocator[K comparable, V any, D BucketParam] interface {
	// AllocPayload should return a slice equivalent to
	// make([]Slot[K,V], n), or an error if the buffer cannot be acquired.
	AllocPayload(n int) ([]Slot[K, V], error)

	// AllocDisplacement should return a slice equivalent to make([]D, n),
	// or an error if the buffer cannot be acquired.
	AllocDisplacement(n int) ([]D, error)

	// AllocWords should return a slice equivalent to make([]uint64, n),
	// or an error if the buffer cannot be acquired.
	AllocWords(n int) ([]uint64, error)

	// FreePayload can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocPayload.
	FreePayload(v []Slot[K, V])

	// FreeDisplacement can optionally release the memory associated with
	// the supplied slice that is guaranteed to have been allocated by
	// AllocDisplacement.
	FreeDisplacement(v []D)

	// FreeWords can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocWords.
	FreeWords(v []uint64)
}

type defaultAllocator[K comparable, V any, D BucketParam] struct{}

func (defaultAllocator[K, V, D]) AllocPayload(n int) ([]Slot[K, V], error) {
	return make([]Slot[K, V], n), nil
}

func (defaultAllocator[K, V, D]) AllocDisplacement(n int) ([]D, error) {
	return make([]D, n), nil
}

func (defaultAllocator[K, V, D]) AllocWords(n int) ([]uint64, error) {
	return make([]uint64, n), nil
}

func (defaultAllocator[K, V, D]) FreePayload(v []Slot[K, V]) {}

func (defaultAllocator[K, V, D]) FreeDisplacement(v []D) {}

func (defaultAllocator[K, V, D]) FreeWords(v []uint64) {}

// wrapAllocErr turns a raw allocator error into an *AllocationFailureError
// tagged with the operation that triggered it, or returns nil unchanged.
func wrapAllocErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AllocationFailureError{Op: op, Err: err}
}

func newConfig[K comparable, V any, D BucketParam](upperLimit float64, opts []option[K, V, D]) config[K, V, D] {
	c := config[K, V, D]{
		allocator:     defaultAllocator[K, V, D]{},
		bucketFactor:  defaultBucketFactor,
		maxLoadFactor: upperLimit * 0.9,
		seedSource:    defaultSeedSource,
		seedRetries:   defaultSeedRetries,
		factorRetries: defaultFactorRetries,
	}
	for _, o := range opts {
		o.apply(&c)
	}
	if c.maxLoadFactor <= 0 || c.maxLoadFactor > upperLimit {
		c.maxLoadFactor = upperLimit * 0.9
	}
	if c.bucketFactor < minBucketFactor {
		c.bucketFactor = minBucketFactor
	}
	return c
}

func (c *config[K, V, D]) requireHasher() error {
	if c.hasher == nil {
		var zero K
		return fmt.Errorf("fph: no Hasher configured for key type %T; use WithHasher", zero)
	}
	return nil
}
