package fph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitmix64Distinctness(t *testing.T) {
	seen := make(map[uint64]struct{}, 1000)
	for i := uint64(0); i < 1000; i++ {
		v := splitmix64(i)
		_, dup := seen[v]
		require.False(t, dup, "splitmix64 collided for input %d", i)
		seen[v] = struct{}{}
	}
}

func TestPlainHasherVariesWithSeed(t *testing.T) {
	h := NewPlainHasher(func(k string) uint64 { return 12345 })
	a := h.Hash("x", 1)
	b := h.Hash("x", 2)
	require.NotEqual(t, a, b)
}

func TestSeededHasherPassesThrough(t *testing.T) {
	h := NewSeededHasher(func(k int, seed uint64) uint64 { return uint64(k) ^ seed })
	require.Equal(t, uint64(5)^42, h.Hash(5, 42))
}

func TestIntegerHasherVariesWithSeed(t *testing.T) {
	h := NewIntegerHasher[int]()
	require.NotEqual(t, h.Hash(7, 1), h.Hash(7, 2))
}

func TestStringAndBytesHashersAgreeOnContent(t *testing.T) {
	sh := NewStringHasher()
	bh := NewBytesHasher()
	require.Equal(t, sh.Hash("hello", 99), bh.Hash([]byte("hello"), 99))
}

func TestMurmur3HashersDifferFromXXHash(t *testing.T) {
	sh := NewStringHasher()
	mh := NewMurmur3StringHasher()
	require.NotEqual(t, sh.Hash("hello", 0), mh.Hash("hello", 0))
}

func TestDefaultHasherForKnownTypes(t *testing.T) {
	require.NotNil(t, defaultHasherFor[string]())
	require.NotNil(t, defaultHasherFor[int]())
	require.NotNil(t, defaultHasherFor[uint64]())
}

type opaqueKey struct{ id int }

func TestDefaultHasherForUnknownTypeIsNil(t *testing.T) {
	require.Nil(t, defaultHasherFor[opaqueKey]())
}

func TestEquivalenceFunc(t *testing.T) {
	eq := EquivalenceFunc(func(k string, l []byte) bool { return k == string(l) })
	require.True(t, eq.Equal("abc", []byte("abc")))
	require.False(t, eq.Equal("abc", []byte("xyz")))
}
