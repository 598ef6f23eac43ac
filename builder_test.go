package fph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamBitsAndMax(t *testing.T) {
	require.Equal(t, uint(8), paramBits[uint8]())
	require.Equal(t, uint(16), paramBits[uint16]())
	require.Equal(t, uint(32), paramBits[uint32]())
	require.Equal(t, uint(64), paramBits[uint64]())

	require.Equal(t, uint64(0xFF), paramMax[uint8]())
	require.Equal(t, uint64(0xFFFF), paramMax[uint16]())
	require.Equal(t, uint64(0xFFFFFFFF), paramMax[uint32]())
	require.Equal(t, ^uint64(0), paramMax[uint64]())
}

func TestNextPow2(t *testing.T) {
	cases := []struct{ in, want uint32 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {1024, 1024}, {1025, 2048},
	}
	for _, c := range cases {
		require.Equal(t, c.want, nextPow2(c.in), "nextPow2(%d)", c.in)
	}
}

func TestBuildPerfectHashEmpty(t *testing.T) {
	cfg := buildConfig[int, uint32]{
		hasher:        NewIntegerHasher[int](),
		bucketFactor:  2.0,
		maxLoadFactor: 0.9,
		seedSource:    defaultSeedSource,
		seedRetries:   8,
		factorRetries: 2,
	}
	res, _, err := buildPerfectHash[int, uint32](nil, cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(1), res.buckets)
	require.Equal(t, uint32(1), res.slots)
}

func TestBuildPerfectHashDistinctSlots(t *testing.T) {
	keys := make([]int, 2000)
	for i := range keys {
		keys[i] = i * 7
	}
	cfg := buildConfig[int, uint32]{
		hasher:        NewIntegerHasher[int](),
		bucketFactor:  2.0,
		maxLoadFactor: 0.85,
		seedSource:    defaultSeedSource,
		seedRetries:   64,
		factorRetries: 3,
	}
	res, _, err := buildPerfectHash[int, uint32](keys, cfg)
	require.NoError(t, err)

	seen := make(map[uint32]bool, len(keys))
	for _, s := range res.slotOf {
		require.False(t, seen[s], "slot %d assigned twice", s)
		seen[s] = true
		require.Less(t, s, res.slots)
	}
}

func TestBuildPerfectHashCapacityExceeded(t *testing.T) {
	keys := make([]int, 1000)
	for i := range keys {
		keys[i] = i
	}
	cfg := buildConfig[int, uint8]{
		hasher:        NewIntegerHasher[int](),
		bucketFactor:  2.0,
		maxLoadFactor: 0.9,
		seedSource:    defaultSeedSource,
		seedRetries:   8,
		factorRetries: 1,
	}
	_, _, err := buildPerfectHash[int, uint8](keys, cfg)
	require.Error(t, err)
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
}

func TestMaxLoadFactorUpperLimits(t *testing.T) {
	require.InDelta(t, 0.98, maxLoadFactorUpperLimit(8), 1e-9)
	require.InDelta(t, 0.999, maxLoadFactorUpperLimit(16), 1e-9)
	require.InDelta(t, 0.999, maxLoadFactorUpperLimit(32), 1e-9)
	require.Less(t, metaMaxLoadFactorUpperLimit(8), maxLoadFactorUpperLimit(8))
	require.Less(t, metaMaxLoadFactorUpperLimit(16), maxLoadFactorUpperLimit(16))
}
