// Package trie implements the binary trie representation of spec.md
// section 3: leaf, branch-of-256, and extension nodes, their canonical
// encoding, and the read/commit/prune algorithms over them.
//
// The node model is grounded on Carmen's state/mpt/nodes.go tagged-variant
// design (there: empty/branch/extension/account/value; here: the three
// shapes spec.md names), but dispatch is a plain Kind switch over one
// struct rather than an interface-per-shape, not the per-node
// virtual-call recursion Carmen's five node types use. The reader's
// lookup and the pruner's reachability walk are iterative loops; the
// writer's insert and delete are not iterative, they recurse once per
// node on the key's path, so their depth is bounded by the key length.
package trie

import (
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/encoding"
	"github.com/casper-network/casper-global-state/gserr"
)

// Kind discriminates the three node shapes.
type Kind byte

const (
	KindLeaf      Kind = 1
	KindBranch    Kind = 2
	KindExtension Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindBranch:
		return "branch"
	case KindExtension:
		return "extension"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// ValueTag marks whether a stored value supports the add transform, and
// at what width.
type ValueTag byte

const (
	TagOpaque  ValueTag = 0
	TagUint64  ValueTag = 1
	TagUint128 ValueTag = 2
	TagUint256 ValueTag = 3
	TagUint512 ValueTag = 4
	// TagNamedKeys marks a value as a canonical (name -> key) list subject
	// to the add_named_keys merge transform.
	TagNamedKeys ValueTag = 5
)

// Width returns the byte width of a numeric tag, or 0 for non-numeric
// tags.
func (t ValueTag) Width() int {
	switch t {
	case TagUint64:
		return 8
	case TagUint128:
		return 16
	case TagUint256:
		return 32
	case TagUint512:
		return 64
	default:
		return 0
	}
}

func (t ValueTag) IsNumeric() bool {
	return t.Width() > 0
}

// TaggedValue is a value paired with the type tag hint described in
// spec.md section 3.
type TaggedValue struct {
	Tag   ValueTag
	Bytes []byte
}

func (v TaggedValue) Equal(o TaggedValue) bool {
	if v.Tag != o.Tag || len(v.Bytes) != len(o.Bytes) {
		return false
	}
	for i := range v.Bytes {
		if v.Bytes[i] != o.Bytes[i] {
			return false
		}
	}
	return true
}

// Node is the tagged union of spec.md section 3's three trie node shapes.
type Node struct {
	Kind Kind

	// Leaf fields.
	Key   []byte
	Value TaggedValue

	// Branch fields: a slot is empty iff Children[b].IsZero().
	Children [256]digest.Hash

	// Extension fields. Affix is always >0 bytes; Child never refers to
	// another extension (extensions are merged on write, see writer.go).
	Affix []byte
	Child digest.Hash
}

func NewLeaf(key []byte, value TaggedValue) *Node {
	return &Node{Kind: KindLeaf, Key: append([]byte(nil), key...), Value: value}
}

func NewExtension(affix []byte, child digest.Hash) *Node {
	if len(affix) == 0 {
		panic("trie: extension affix must be non-empty")
	}
	return &Node{Kind: KindExtension, Affix: append([]byte(nil), affix...), Child: child}
}

func NewBranch() *Node {
	return &Node{Kind: KindBranch}
}

// NonEmptySlots counts the populated children of a branch, used to
// enforce the "a branch has >= 2 non-empty slots" invariant.
func (n *Node) NonEmptySlots() int {
	count := 0
	for _, c := range n.Children {
		if !c.IsZero() {
			count++
		}
	}
	return count
}

// singleChild returns the one populated slot of a branch with exactly one
// child, used by the collapse-on-delete logic in writer.go.
func (n *Node) singleChild() (slot byte, child digest.Hash, ok bool) {
	found := false
	for b := 0; b < 256; b++ {
		if !n.Children[b].IsZero() {
			if found {
				return 0, digest.Hash{}, false
			}
			slot, child = byte(b), n.Children[b]
			found = true
		}
	}
	return slot, child, found
}

// Encode produces the canonical byte encoding used both for hashing and
// for object-store persistence. The encoding is stable: equal nodes
// always encode identically.
func (n *Node) Encode() []byte {
	w := encoding.NewWriter()
	w.WriteTag(byte(n.Kind))
	switch n.Kind {
	case KindLeaf:
		w.WriteBytes(n.Key)
		w.WriteTag(byte(n.Value.Tag))
		w.WriteBytes(n.Value.Bytes)
	case KindBranch:
		var bitmap [32]byte
		for b := 0; b < 256; b++ {
			if !n.Children[b].IsZero() {
				bitmap[b/8] |= 1 << uint(b%8)
			}
		}
		w.WriteFixed(bitmap[:])
		for b := 0; b < 256; b++ {
			if !n.Children[b].IsZero() {
				w.WriteHash(n.Children[b])
			}
		}
	case KindExtension:
		w.WriteBytes(n.Affix)
		w.WriteHash(n.Child)
	default:
		panic(fmt.Sprintf("trie: unknown node kind %d", n.Kind))
	}
	return w.Bytes()
}

// Digest computes the content hash of a node's canonical encoding.
// Identical nodes produce identical digests and therefore deduplicate
// automatically in the object store.
func (n *Node) Digest() digest.Hash {
	return digest.Sum(n.Encode())
}

// Decode parses a node from its canonical encoding, failing with
// gserr.Formatting on truncated/over-long input or an unknown tag, and
// gserr.LeftoverBytes if trailing bytes remain.
func Decode(data []byte) (*Node, error) {
	r := encoding.NewReader(data)
	tag, err := r.ReadTag()
	if err != nil {
		return nil, err
	}
	var n *Node
	switch Kind(tag) {
	case KindLeaf:
		key, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		vtag, err := r.ReadTag()
		if err != nil {
			return nil, err
		}
		vbytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		n = &Node{Kind: KindLeaf, Key: key, Value: TaggedValue{Tag: ValueTag(vtag), Bytes: vbytes}}
	case KindBranch:
		bitmap, err := r.ReadFixed(32)
		if err != nil {
			return nil, err
		}
		n = &Node{Kind: KindBranch}
		for b := 0; b < 256; b++ {
			if bitmap[b/8]&(1<<uint(b%8)) == 0 {
				continue
			}
			h, err := r.ReadHash()
			if err != nil {
				return nil, err
			}
			n.Children[b] = h
		}
	case KindExtension:
		affix, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if len(affix) == 0 {
			return nil, fmt.Errorf("extension with zero-length affix: %w", gserr.Formatting)
		}
		child, err := r.ReadHash()
		if err != nil {
			return nil, err
		}
		n = &Node{Kind: KindExtension, Affix: affix, Child: child}
	default:
		return nil, fmt.Errorf("unknown node tag %d: %w", tag, gserr.Formatting)
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return n, nil
}

// commonPrefixLen returns the length of the shared prefix of a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
