package trie_test

import (
	"errors"
	"testing"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
	"github.com/casper-network/casper-global-state/trie"
)

func testLimits() trie.Limits {
	return trie.Limits{MaxKeyBytes: 64, MaxValueBytes: 1 << 20}
}

func opaque(s string) trie.TaggedValue {
	return trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte(s)}
}

func mustCommit(t *testing.T, store objectstore.Store, preRoot digest.Hash, entries []trie.Entry) trie.CommitResult {
	t.Helper()
	txn, err := store.BeginWrite()
	if err != nil {
		t.Fatal(err)
	}
	res, err := trie.Commit(txn, nil, testLimits(), preRoot, entries)
	if err != nil {
		txn.Rollback()
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	return res
}

func mustRead(t *testing.T, store objectstore.Store, root digest.Hash, key []byte) (trie.TaggedValue, bool) {
	t.Helper()
	rtxn, err := store.BeginRead()
	if err != nil {
		t.Fatal(err)
	}
	defer rtxn.Release()
	v, found, err := trie.NewReader(rtxn, nil).Read(root, key)
	if err != nil {
		t.Fatal(err)
	}
	return v, found
}

func TestCommitSingleKeyThenRead(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0xAB, 0x01}, Transform: trie.Write(opaque("hello"))},
	})
	v, found := mustRead(t, store, res.PostRoot, []byte{0xAB, 0x01})
	if !found || string(v.Bytes) != "hello" {
		t.Fatalf("unexpected: %v %v", v, found)
	}
}

func TestCommitTwoKeysCommonPrefix(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0xAB, 0x01}, Transform: trie.Write(opaque("a"))},
		{Key: []byte{0xAB, 0x02}, Transform: trie.Write(opaque("b"))},
	})
	va, founda := mustRead(t, store, res.PostRoot, []byte{0xAB, 0x01})
	vb, foundb := mustRead(t, store, res.PostRoot, []byte{0xAB, 0x02})
	if !founda || string(va.Bytes) != "a" {
		t.Fatalf("key 1: %v %v", va, founda)
	}
	if !foundb || string(vb.Bytes) != "b" {
		t.Fatalf("key 2: %v %v", vb, foundb)
	}
}

// TestDeleteCollapseMatchesFreshSingleKeyRoot exercises the scenario
// commit(commit(empty, [write(0xAB01,x), write(0xAB02,y)]), [delete(0xAB01)]).post_root
// == commit(empty, [write(0xAB02,y)]).post_root: collapsing a two-leaf
// branch down to one leaf must discard the collapse affix entirely,
// since the surviving leaf already carries its full key.
func TestDeleteCollapseMatchesFreshSingleKeyRoot(t *testing.T) {
	store := objectstore.NewMemStore()
	both := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0xAB, 0x01}, Transform: trie.Write(opaque("x"))},
		{Key: []byte{0xAB, 0x02}, Transform: trie.Write(opaque("y"))},
	})
	afterDelete := mustCommit(t, store, both.PostRoot, []trie.Entry{
		{Key: []byte{0xAB, 0x01}, Transform: trie.Delete()},
	})
	fresh := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0xAB, 0x02}, Transform: trie.Write(opaque("y"))},
	})
	if afterDelete.PostRoot != fresh.PostRoot {
		t.Fatalf("collapse root %s != fresh root %s", afterDelete.PostRoot, fresh.PostRoot)
	}
}

func TestDeleteOfAbsentKeyIsNoop(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("x"))},
	})
	again := mustCommit(t, store, res.PostRoot, []trie.Entry{
		{Key: []byte{0x02}, Transform: trie.Delete()},
	})
	if again.PostRoot != res.PostRoot {
		t.Fatalf("deleting an absent key changed the root: %s != %s", again.PostRoot, res.PostRoot)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("x"))},
	})
	once := mustCommit(t, store, res.PostRoot, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Delete()},
	})
	twice := mustCommit(t, store, once.PostRoot, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Delete()},
	})
	if once.PostRoot != twice.PostRoot {
		t.Fatalf("repeated delete changed root: %s != %s", once.PostRoot, twice.PostRoot)
	}
	if once.PostRoot != digest.Empty {
		t.Fatalf("deleting the only key should yield the empty root, got %s", once.PostRoot)
	}
}

func TestCommitAddInitializesAbsentKey(t *testing.T) {
	store := objectstore.NewMemStore()
	add, err := trie.AddUnsigned(8, u64Bytes(5))
	if err != nil {
		t.Fatal(err)
	}
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: add},
	})
	v, found := mustRead(t, store, res.PostRoot, []byte{0x01})
	if !found || v.Tag != trie.TagUint64 || beU64(v.Bytes) != 5 {
		t.Fatalf("unexpected: %v %v", v, found)
	}
}

func TestCommitOverflowAborts(t *testing.T) {
	store := objectstore.NewMemStore()
	maxU64 := make([]byte, 8)
	for i := range maxU64 {
		maxU64[i] = 0xFF
	}
	base := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(trie.TaggedValue{Tag: trie.TagUint64, Bytes: maxU64})},
	})
	one, _ := trie.AddUnsigned(8, u64Bytes(1))
	txn, err := store.BeginWrite()
	if err != nil {
		t.Fatal(err)
	}
	_, err = trie.Commit(txn, nil, testLimits(), base.PostRoot, []trie.Entry{
		{Key: []byte{0x01}, Transform: one},
	})
	txn.Rollback()
	if !errors.Is(err, gserr.Overflow) {
		t.Fatalf("expected gserr.Overflow, got %v", err)
	}
}

func TestCommitKeyTooLong(t *testing.T) {
	store := objectstore.NewMemStore()
	txn, err := store.BeginWrite()
	if err != nil {
		t.Fatal(err)
	}
	limits := trie.Limits{MaxKeyBytes: 2, MaxValueBytes: 1024}
	_, err = trie.Commit(txn, nil, limits, digest.Empty, []trie.Entry{
		{Key: []byte{0x01, 0x02, 0x03}, Transform: trie.Write(opaque("x"))},
	})
	txn.Rollback()
	if !errors.Is(err, gserr.KeyTooLong) {
		t.Fatalf("expected gserr.KeyTooLong, got %v", err)
	}
}

func TestCommitValueTooLarge(t *testing.T) {
	store := objectstore.NewMemStore()
	txn, err := store.BeginWrite()
	if err != nil {
		t.Fatal(err)
	}
	limits := trie.Limits{MaxKeyBytes: 64, MaxValueBytes: 2}
	_, err = trie.Commit(txn, nil, limits, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("too long"))},
	})
	txn.Rollback()
	if !errors.Is(err, gserr.ValueTooLarge) {
		t.Fatalf("expected gserr.ValueTooLarge, got %v", err)
	}
}

// TestCommitOrderInsensitiveForDistinctKeys exercises the "permutations
// of entries yield the same post_root" property for a batch of
// non-overlapping keys.
func TestCommitOrderInsensitiveForDistinctKeys(t *testing.T) {
	storeA := objectstore.NewMemStore()
	storeB := objectstore.NewMemStore()
	forward := []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("a"))},
		{Key: []byte{0x02}, Transform: trie.Write(opaque("b"))},
		{Key: []byte{0x03}, Transform: trie.Write(opaque("c"))},
	}
	reversed := []trie.Entry{forward[2], forward[1], forward[0]}

	resA := mustCommit(t, storeA, digest.Empty, forward)
	resB := mustCommit(t, storeB, digest.Empty, reversed)
	if resA.PostRoot != resB.PostRoot {
		t.Fatalf("order sensitivity: %s != %s", resA.PostRoot, resB.PostRoot)
	}
}

// TestCommitAdditiveLaw exercises add(a) then add(b) == add(a+b) in a
// single commit, spec.md section 3's additive law.
func TestCommitAdditiveLaw(t *testing.T) {
	store := objectstore.NewMemStore()
	a, _ := trie.AddUnsigned(8, u64Bytes(3))
	b, _ := trie.AddUnsigned(8, u64Bytes(4))
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: a},
		{Key: []byte{0x01}, Transform: b},
	})
	v, found := mustRead(t, store, res.PostRoot, []byte{0x01})
	if !found || beU64(v.Bytes) != 7 {
		t.Fatalf("unexpected: %v %v", v, found)
	}
}

// TestCommitDeduplicatesIdenticalNodes checks that re-committing a
// key/value pair already present under the root persists no new nodes.
func TestCommitDeduplicatesIdenticalNodes(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("same"))},
		{Key: []byte{0x02}, Transform: trie.Write(opaque("same"))},
	})
	// The two keys differ, so their leaves are distinct even though the
	// value bytes match (the leaf encoding includes the key); the
	// meaningful dedup case is re-committing a value already present.
	again := mustCommit(t, store, res.PostRoot, []trie.Entry{
		{Key: []byte{0x01}, Transform: trie.Write(opaque("same"))},
	})
	if len(again.NewDigests) != 0 {
		t.Fatalf("expected no new digests re-writing an unchanged value, got %d", len(again.NewDigests))
	}
}

func TestCommitEmptyBatchIsNoop(t *testing.T) {
	store := objectstore.NewMemStore()
	res := mustCommit(t, store, digest.Empty, nil)
	if res.PostRoot != digest.Empty {
		t.Fatalf("expected empty root, got %s", res.PostRoot)
	}
	if len(res.NewDigests) != 0 {
		t.Fatalf("expected no new digests, got %d", len(res.NewDigests))
	}
}
