package digest_test

import (
	"testing"

	"github.com/casper-network/casper-global-state/digest"
)

func TestSumIsDeterministic(t *testing.T) {
	a := digest.Sum([]byte("hello"))
	b := digest.Sum([]byte("hello"))
	if a != b {
		t.Fatalf("expected equal digests for equal input, got %x != %x", a, b)
	}
}

func TestSumDistinguishesInput(t *testing.T) {
	a := digest.Sum([]byte("hello"))
	b := digest.Sum([]byte("world"))
	if a == b {
		t.Fatalf("expected distinct digests for distinct input")
	}
}

func TestEmptyIsSumOfNil(t *testing.T) {
	if digest.Empty != digest.Sum(nil) {
		t.Fatalf("Empty should equal Sum(nil)")
	}
	if digest.Empty.IsZero() {
		t.Fatalf("sha256 of empty input should not be the all-zero sentinel")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := digest.Sum([]byte("x"))
	got := digest.FromBytes(h.Bytes())
	if got != h {
		t.Fatalf("round trip mismatch")
	}
}
