package fph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindAsTransparentBytesLookup(t *testing.T) {
	m, err := New[string, int, uint32](0)
	require.NoError(t, err)
	_, _, err = m.Insert("hello", 42)
	require.NoError(t, err)

	lh := NewBytesHasher()
	eq := EquivalenceFunc(func(k string, l []byte) bool { return k == string(l) })

	v, ok := FindAs(m, []byte("hello"), lh, eq)
	require.True(t, ok)
	require.Equal(t, 42, v)

	require.True(t, ContainsAs(m, []byte("hello"), lh, eq))
	require.Equal(t, 1, CountAs(m, []byte("hello"), lh, eq))
	_, ok = FindAs(m, []byte("nope"), lh, eq)
	require.False(t, ok)

	v, err = AtAs(m, []byte("hello"), lh, eq)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	_, err = AtAs(m, []byte("nope"), lh, eq)
	require.ErrorIs(t, err, ErrKeyNotPresent)
}

func TestFindMetaAsTransparentBytesLookup(t *testing.T) {
	m, err := NewMeta[string, int, uint32](0)
	require.NoError(t, err)
	_, _, err = m.Insert("hello", 42)
	require.NoError(t, err)

	lh := NewBytesHasher()
	eq := EquivalenceFunc(func(k string, l []byte) bool { return k == string(l) })

	v, ok := FindMetaAs(m, []byte("hello"), lh, eq)
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.True(t, ContainsMetaAs(m, []byte("hello"), lh, eq))
	require.False(t, ContainsMetaAs(m, []byte("nope"), lh, eq))
}
