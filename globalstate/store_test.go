package globalstate_test

import (
	"testing"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/globalstate"
	"github.com/casper-network/casper-global-state/gsconfig"
	"github.com/casper-network/casper-global-state/overlay"
	"github.com/casper-network/casper-global-state/trie"
)

func testConfig() gsconfig.Config {
	cfg := gsconfig.Default
	cfg.StorePath = ""
	cfg.PruneBatchSize = 3
	return cfg
}

func opaque(s string) trie.TaggedValue {
	return trie.TaggedValue{Tag: trie.TagOpaque, Bytes: []byte(s)}
}

func TestOpenCheckoutFlushRoundTrip(t *testing.T) {
	store, err := globalstate.Open(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ov, err := store.Checkout(digest.Empty)
	if err != nil {
		t.Fatal(err)
	}
	if err := ov.Apply(overlay.Journal{{Key: []byte{0x01}, Transform: trie.Write(opaque("x"))}}); err != nil {
		t.Fatal(err)
	}
	res, err := ov.Flush()
	if err != nil {
		t.Fatal(err)
	}

	ov2, err := store.Checkout(res.PostRoot)
	if err != nil {
		t.Fatal(err)
	}
	v, found, err := ov2.Read([]byte{0x01})
	if err != nil || !found || string(v.Bytes) != "x" {
		t.Fatalf("unexpected: %v %v %v", v, found, err)
	}
}

func TestCheckoutUnknownRootFails(t *testing.T) {
	store, err := globalstate.Open(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	bogus := digest.Sum([]byte("never committed"))
	if _, err := store.Checkout(bogus); err == nil {
		t.Fatal("expected an error checking out an unpublished root")
	}
}

func TestStorePruneDrivesBatches(t *testing.T) {
	store, err := globalstate.Open(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ov, err := store.Checkout(digest.Empty)
	if err != nil {
		t.Fatal(err)
	}
	entries := make(overlay.Journal, 10)
	keys := make([][]byte, 10)
	for i := range entries {
		keys[i] = []byte{byte(i)}
		entries[i] = trie.Entry{Key: keys[i], Transform: trie.Write(opaque("v"))}
	}
	if err := ov.Apply(entries); err != nil {
		t.Fatal(err)
	}
	res, err := ov.Flush()
	if err != nil {
		t.Fatal(err)
	}

	newRoot, err := store.Prune(res.PostRoot, keys)
	if err != nil {
		t.Fatal(err)
	}
	if newRoot != digest.Empty {
		t.Fatalf("expected all keys pruned to the empty root, got %s", newRoot)
	}
}

func TestOpenRejectsZeroKeyBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxKeyBytes = 0
	if _, err := globalstate.Open(cfg); err == nil {
		t.Fatal("expected an error for a non-positive max_key_bytes")
	}
}
