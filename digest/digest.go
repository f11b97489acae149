// Package digest computes the 32-byte content hash used to identify every
// artifact stored by the global state (trie nodes, and by extension the
// roots that name them).
//
// The teacher's mpt package supports two interchangeable hashing schemes,
// DirectHashing and EthereumLikeHashing; DirectHashing computes a node's
// hash directly from its canonical encoding using crypto/sha256. That is
// the scheme this package follows, since nothing here needs Ethereum's
// account/storage trie hashing rules.
package digest

import "crypto/sha256"

// Size is the byte length of a Hash.
const Size = 32

// Hash is a 32-byte content digest.
type Hash [Size]byte

// Empty is the sentinel digest naming the empty trie.
var Empty = Sum(nil)

// Sum computes the digest of a byte buffer.
func Sum(data []byte) Hash {
	return sha256.Sum256(data)
}

// IsZero reports whether h is the all-zero digest, used as the "no child"
// sentinel inside branch node encodings.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

func (h Hash) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, Size*2)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

// FromBytes copies b into a Hash. It panics if b is not exactly Size bytes
// long; callers decoding untrusted input must check length themselves
// before calling this (see encoding.Reader.ReadHash).
func FromBytes(b []byte) Hash {
	if len(b) != Size {
		panic("digest: FromBytes requires exactly 32 bytes")
	}
	var h Hash
	copy(h[:], b)
	return h
}
