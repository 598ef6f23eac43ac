package fph

import (
	"errors"
	"fmt"
)

// ErrKeyNotPresent is returned by At when the requested key is absent. Find,
// Contains, Count, and Erase never fail on a missing key; they report
// "not found" through their own return values instead.
var ErrKeyNotPresent = errors.New("fph: key not present")

// BuildFailureError reports that the perfect-hash builder exhausted its
// attempt budget for a key set without finding a working parameter bundle.
// It usually indicates pathological hash collisions (a degenerate hash
// function) or a bucket factor / max load factor combination that is too
// aggressive for the key set. The table is left unmodified when this error
// is returned from a mutating call.
type BuildFailureError struct {
	Keys              int
	SeedAttempts      int
	BucketFactorTries int
}

func (e *BuildFailureError) Error() string {
	return fmt.Sprintf(
		"fph: perfect-hash build failed for %d keys after %d seed attempts across %d bucket-factor expansions",
		e.Keys, e.SeedAttempts, e.BucketFactorTries)
}

// CapacityExceededError reports that the chosen BucketParam width cannot
// address the slot count a build would require. Callers must pick a wider
// BucketParam type (uint16/uint32/uint64) or shrink the request (a smaller
// max load factor headroom, fewer reserved keys).
type CapacityExceededError struct {
	Requested uint64
	ParamBits uint
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf(
		"fph: slot count %d exceeds what a %d-bit BucketParam can address",
		e.Requested, e.ParamBits)
}

// AllocationFailureError wraps an error returned by a user-supplied
// Allocator. Any buffers already acquired for the failed operation are
// released before this error reaches the caller.
type AllocationFailureError struct {
	Op  string
	Err error
}

func (e *AllocationFailureError) Error() string {
	return fmt.Sprintf("fph: allocation failed during %s: %v", e.Op, e.Err)
}

func (e *AllocationFailureError) Unwrap() error {
	return e.Err
}
