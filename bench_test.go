package fph

import (
	"fmt"
	"io"
	"strconv"
	"testing"
)

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkFPHMapIter[int64], genKeys[int64]))
	})
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkFPHMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkFPHMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=fphMetaMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMetaMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkFPHMetaMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkFPHMetaMapGetHit[string], genKeys[string]))
	})
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetMiss[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapGetMiss[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMapGetMiss[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkFPHMapGetMiss[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkFPHMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=fphMetaMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMetaMapGetMiss[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkFPHMetaMapGetMiss[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkFPHMetaMapGetMiss[string], genKeys[string]))
	})
}

func BenchmarkMapBuildFromScratch(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapBuild[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapBuild[string], genKeys[string]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMapBuild[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkFPHMapBuild[string], genKeys[string]))
	})
}

func BenchmarkMapInsertPreAllocated(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutPreAllocate[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutPreAllocate[string], genKeys[string]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMapInsertPreAllocated[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkFPHMapInsertPreAllocated[string], genKeys[string]))
	})
}

func BenchmarkMapEraseReinsert(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutDelete[int64], genKeys[int64]))
	})
	b.Run("impl=fphMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkFPHMapEraseReinsert[int64], genKeys[int64]))
	})
}

type benchTypes interface {
	int32 | int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	var t T
	keys := make([]T, end-start)
	switch any(t).(type) {
	case int32:
		for i := range keys {
			keys[i] = any(int32(start + i)).(T)
		}
	case int64:
		for i := range keys {
			keys[i] = any(int64(start + i)).(T)
		}
	case string:
		for i := range keys {
			keys[i] = any(strconv.Itoa(start + i)).(T)
		}
	default:
		panic("not reached")
	}
	return keys
}

func fphHasherFor[T benchTypes]() Hasher[T] {
	h := defaultHasherFor[T]()
	if h == nil {
		panic("no default hasher for benchmark key type")
	}
	return h
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	var tmp int
	for i := 0; i < b.N; i++ {
		for range m {
			tmp++
		}
	}
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkFPHMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := New[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	var tmp int
	for i := 0; i < b.N; i++ {
		for range m.All() {
			tmp++
		}
	}
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkRuntimeMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[keys[i&(n-1)]]
	}
}

func benchmarkFPHMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := New[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Find(keys[i&(n-1)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkFPHMetaMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := NewMeta[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Find(keys[i&(n-1)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%len(miss)]]
	}
}

func benchmarkFPHMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := New[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Find(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkFPHMetaMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := NewMeta[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Find(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapBuild[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkFPHMapBuild[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	hasher := fphHasherFor[T]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m, err := New[T, T, uint32](0, WithHasher[T, T, uint32](hasher))
		if err != nil {
			b.Fatal(err)
		}
		for _, k := range keys {
			if _, _, err := m.Insert(k, k); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func benchmarkRuntimeMapPutPreAllocate[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]T, n)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkFPHMapInsertPreAllocated[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	hasher := fphHasherFor[T]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m, err := New[T, T, uint32](n, WithHasher[T, T, uint32](hasher))
		if err != nil {
			b.Fatal(err)
		}
		for _, k := range keys {
			if _, _, err := m.Insert(k, k); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func benchmarkRuntimeMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkFPHMapEraseReinsert[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m, err := New[T, T, uint32](n, WithHasher[T, T, uint32](fphHasherFor[T]()))
	if err != nil {
		b.Fatal(err)
	}
	keys := genKeys(0, n)
	for _, k := range keys {
		if _, _, err := m.Insert(k, k); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Erase(keys[j])
		if _, _, err := m.Insert(keys[j], keys[j]); err != nil {
			b.Fatal(err)
		}
	}
}
