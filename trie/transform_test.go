package trie_test

import (
	"errors"
	"testing"

	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/trie"
)

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func TestApplyWrite(t *testing.T) {
	v, deleted, err := trie.Apply(trie.TaggedValue{}, false, trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("x")}))
	if err != nil || deleted || string(v.Bytes) != "x" {
		t.Fatalf("unexpected: %v %v %v", v, deleted, err)
	}
}

func TestApplyDeleteOnAbsentIsNoop(t *testing.T) {
	_, deleted, err := trie.Apply(trie.TaggedValue{}, false, trie.Delete())
	if err != nil || !deleted {
		t.Fatalf("unexpected: %v %v", deleted, err)
	}
}

func TestApplyAddInitializesAbsent(t *testing.T) {
	add, _ := trie.AddUnsigned(8, u64Bytes(5))
	v, deleted, err := trie.Apply(trie.TaggedValue{}, false, add)
	if err != nil || deleted {
		t.Fatalf("unexpected: %v %v", deleted, err)
	}
	if v.Tag != trie.TagUint64 {
		t.Fatalf("expected TagUint64, got %v", v.Tag)
	}
}

func TestApplyAddOverflow(t *testing.T) {
	maxU64 := make([]byte, 8)
	for i := range maxU64 {
		maxU64[i] = 0xFF
	}
	current := trie.TaggedValue{Tag: trie.TagUint64, Bytes: maxU64}
	one, _ := trie.AddUnsigned(8, u64Bytes(1))
	_, _, err := trie.Apply(current, true, one)
	if !errors.Is(err, gserr.Overflow) {
		t.Fatalf("expected gserr.Overflow, got %v", err)
	}
}

func TestApplyAddTypeMismatch(t *testing.T) {
	current := trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("not a number")}
	one, _ := trie.AddUnsigned(8, u64Bytes(1))
	_, _, err := trie.Apply(current, true, one)
	if !errors.Is(err, gserr.TypeMismatch) {
		t.Fatalf("expected gserr.TypeMismatch, got %v", err)
	}
}

func TestMergeAddThenAddSums(t *testing.T) {
	a, _ := trie.AddUnsigned(8, u64Bytes(3))
	b, _ := trie.AddUnsigned(8, u64Bytes(4))
	merged := trie.Merge(a, b)
	v, _, err := trie.Apply(trie.TaggedValue{}, false, merged)
	if err != nil {
		t.Fatal(err)
	}
	got := beU64(v.Bytes)
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestMergeWriteThenWriteLastWins(t *testing.T) {
	w1 := trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("first")})
	w2 := trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("second")})
	merged := trie.Merge(w1, w2)
	v, _, err := trie.Apply(trie.TaggedValue{}, false, merged)
	if err != nil || string(v.Bytes) != "second" {
		t.Fatalf("unexpected: %v %v", v, err)
	}
}

func TestMergeWriteThenDeleteIsDelete(t *testing.T) {
	w1 := trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("x")})
	merged := trie.Merge(w1, trie.Delete())
	_, deleted, err := trie.Apply(trie.TaggedValue{}, false, merged)
	if err != nil || !deleted {
		t.Fatalf("unexpected: %v %v", deleted, err)
	}
}

func TestMergeDeleteThenAddIsEquivalentToWrite(t *testing.T) {
	add, _ := trie.AddUnsigned(8, u64Bytes(9))
	merged := trie.Merge(trie.Delete(), add)
	v, deleted, err := trie.Apply(trie.TaggedValue{}, false, merged)
	if err != nil || deleted || beU64(v.Bytes) != 9 {
		t.Fatalf("unexpected: %v %v %v", v, deleted, err)
	}
}

func TestMergeIdentityIsUnit(t *testing.T) {
	w1 := trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte("x")})
	if got := trie.Merge(trie.Identity(), w1); got.Kind != trie.TWrite {
		t.Fatalf("identity then write should be write, got %v", got.Kind)
	}
	if got := trie.Merge(w1, trie.Identity()); got.Kind != trie.TWrite {
		t.Fatalf("write then identity should remain write, got %v", got.Kind)
	}
}

func TestMergeWidthMismatchPoisonsUntilApply(t *testing.T) {
	a8, _ := trie.AddUnsigned(8, u64Bytes(1))
	a16, _ := trie.AddUnsigned(16, make([]byte, 16))
	merged := trie.Merge(a8, a16)
	_, _, err := trie.Apply(trie.TaggedValue{}, false, merged)
	if !errors.Is(err, gserr.TypeMismatch) {
		t.Fatalf("expected gserr.TypeMismatch at apply time, got %v", err)
	}
}

func beU64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
