package trie

import (
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
)

// Source is the narrow read surface Reader needs. Both objectstore.ReadTxn
// and objectstore.WriteTxn satisfy it, so the writer can resolve
// pre-images through the very write transaction it will later commit,
// without a separate read snapshot.
type Source interface {
	Get(table objectstore.Table, d digest.Hash) (data []byte, ok bool, err error)
}

// Reader performs pure functional lookups against a persisted trie,
// spec.md section 4.3. It holds no mutable trie state of its own; all
// state lives in the object store and the optional node cache.
type Reader struct {
	txn   Source
	cache *Cache
}

// NewReader wraps a read source (and optional cache, may be nil) for
// lookups. The returned Reader is only valid for the lifetime of txn.
func NewReader(txn Source, cache *Cache) *Reader {
	return &Reader{txn: txn, cache: cache}
}

func (r *Reader) fetch(d digest.Hash) (*Node, error) {
	if n, ok := r.cache.get(d); ok {
		return n, nil
	}
	raw, ok, err := r.txn.Get(objectstore.TableTrie, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node %s missing from object store: %w", d, gserr.Formatting)
	}
	n, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding node %s: %w", d, err)
	}
	r.cache.put(d, n)
	return n, nil
}

// Read implements spec.md section 4.3: starting at root, consume key
// bytes one at a time; at a branch, descend into the slot for the next
// byte; at an extension, match the affix against the next affix-length
// bytes of the key (a mismatch is NotFound, not an error); at a leaf,
// compare the leaf's stored key to the query key for equality.
//
// found reports whether the key was present; RootNotFound is returned as
// the error if root itself is absent from the store, distinguishable
// from a merely-missing key (found=false, err=nil).
func (r *Reader) Read(root digest.Hash, key []byte) (value TaggedValue, found bool, err error) {
	if root == digest.Empty {
		return TaggedValue{}, false, nil
	}

	node, err := r.fetchRoot(root)
	if err != nil {
		return TaggedValue{}, false, err
	}

	remaining := key
	// Bounded by key length (<=64 bytes in production config), per
	// spec.md section 5's "iterative and bounded" requirement: every loop
	// iteration consumes at least one byte of the key or terminates.
	for {
		switch node.Kind {
		case KindLeaf:
			if string(node.Key) == string(key) {
				return node.Value, true, nil
			}
			return TaggedValue{}, false, nil
		case KindExtension:
			n := len(node.Affix)
			if n > len(remaining) || string(remaining[:n]) != string(node.Affix) {
				return TaggedValue{}, false, nil
			}
			remaining = remaining[n:]
			node, err = r.fetch(node.Child)
			if err != nil {
				return TaggedValue{}, false, err
			}
		case KindBranch:
			if len(remaining) == 0 {
				// Branches never carry a value directly (spec.md section 3);
				// running out of key bytes at a branch means the key isn't
				// present as a leaf anywhere beneath it.
				return TaggedValue{}, false, nil
			}
			child := node.Children[remaining[0]]
			if child.IsZero() {
				return TaggedValue{}, false, nil
			}
			remaining = remaining[1:]
			node, err = r.fetch(child)
			if err != nil {
				return TaggedValue{}, false, err
			}
		default:
			return TaggedValue{}, false, fmt.Errorf("unreachable node kind %d: %w", node.Kind, gserr.Formatting)
		}
	}
}

func (r *Reader) fetchRoot(root digest.Hash) (*Node, error) {
	if n, ok := r.cache.get(root); ok {
		return n, nil
	}
	raw, ok, err := r.txn.Get(objectstore.TableTrie, root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("root %s: %w", root, gserr.RootNotFound)
	}
	n, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding root %s: %w", root, err)
	}
	r.cache.put(root, n)
	return n, nil
}
