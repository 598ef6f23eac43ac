package fph

import (
	"fmt"
	"testing"
)

func TestReproNilPanic(t *testing.T) {
	cfg := newConfig[string, int, uint32](maxLoadFactorUpperLimit(paramBits[uint32]()), nil)
	fmt.Printf("allocator=%#v hasher=%#v\n", cfg.allocator, cfg.hasher)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic: %v", r)
		}
	}()
	_, err := New[string, int, uint32](0)
	if err != nil {
		t.Fatal(err)
	}
}
