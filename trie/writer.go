package trie

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
)

// Entry is one (key, transform) pair of a commit batch.
type Entry struct {
	Key       []byte
	Transform Transform
}

// Limits bounds the key/value sizes a Commit will accept, spec.md
// section 6's max_key_bytes / max_value_bytes.
type Limits struct {
	MaxKeyBytes   int
	MaxValueBytes int
}

// CommitResult is the outcome of a successful Commit.
type CommitResult struct {
	PostRoot digest.Hash
	// NewDigests lists every node digest newly persisted by this commit,
	// i.e. that did not already exist in the object store beforehand.
	NewDigests []digest.Hash
}

// Commit implements spec.md section 4.4: given a pre-state root and an
// ordered set of (key, transform) entries, it resolves each entry's
// pre-image against pre_root, applies the transform semantics of
// section 3, writes the resulting leaves, and folds them into a new
// trie, returning the new root. Keys are folded one at a time, so nodes
// for keys processed earlier may already have been Put into txn when a
// later transform or size check fails; Commit then returns the error
// without committing txn, and the caller rolls txn back so that nothing
// is published.
func Commit(txn objectstore.WriteTxn, cache *Cache, limits Limits, preRoot digest.Hash, entries []Entry) (CommitResult, error) {
	merged := make(map[string]Transform, len(entries))
	keyBytes := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if len(e.Key) > limits.MaxKeyBytes {
			return CommitResult{}, fmt.Errorf("key of %d bytes exceeds max_key_bytes=%d: %w", len(e.Key), limits.MaxKeyBytes, gserr.KeyTooLong)
		}
		ks := string(e.Key)
		keyBytes[ks] = e.Key
		if existing, ok := merged[ks]; ok {
			merged[ks] = Merge(existing, e.Transform)
		} else {
			merged[ks] = Merge(Identity(), e.Transform)
		}
	}

	// Process distinct keys in sorted order. The trie's final shape is a
	// pure function of the (key -> post-image) mapping (spec.md section 8:
	// "for writes with distinct keys, permutations of entries yield the
	// same post_root"), so any fixed, deterministic processing order
	// produces the canonical result; sorting avoids depending on map
	// iteration order.
	sortedKeys := maps.Keys(merged)
	slices.Sort(sortedKeys)

	reader := NewReader(txn, cache)
	ctx := &commitCtx{txn: txn, cache: cache, seen: map[digest.Hash]bool{}}
	root := preRoot

	for _, ks := range sortedKeys {
		key := keyBytes[ks]
		t := merged[ks]
		if t.Kind == TIdentity {
			// A pure read leaves the trie untouched.
			continue
		}

		current, present, err := reader.Read(root, key)
		if err != nil {
			return CommitResult{}, err
		}

		value, deleted, err := Apply(current, present, t)
		if err != nil {
			return CommitResult{}, err
		}

		if deleted {
			newRoot, _, err := ctx.delete(root, key, key)
			if err != nil {
				return CommitResult{}, err
			}
			root = newRoot
			continue
		}

		if len(value.Bytes) > limits.MaxValueBytes {
			return CommitResult{}, fmt.Errorf("value of %d bytes exceeds max_value_bytes=%d: %w", len(value.Bytes), limits.MaxValueBytes, gserr.ValueTooLarge)
		}

		leaf := NewLeaf(key, value)
		newRoot, err := ctx.insert(root, key, key, leaf)
		if err != nil {
			return CommitResult{}, err
		}
		root = newRoot
	}

	return CommitResult{PostRoot: root, NewDigests: ctx.newDigests}, nil
}

// commitCtx carries the bookkeeping state of a single Commit call: the
// write transaction nodes are persisted to, the node cache new nodes are
// populated into, and the set of digests already handled so repeated
// references to the same content don't get written or counted twice
// (spec.md section 8's Deduplication property).
type commitCtx struct {
	txn        objectstore.WriteTxn
	cache      *Cache
	seen       map[digest.Hash]bool
	newDigests []digest.Hash

	// touched collects digests superseded by a delete walk, populated only
	// when this ctx backs Prune (see pruner.go); Commit leaves it nil.
	touched map[digest.Hash]bool
}

func (c *commitCtx) touch(d digest.Hash) {
	if c.touched != nil {
		c.touched[d] = true
	}
}

func (c *commitCtx) fetch(d digest.Hash) (*Node, error) {
	if n, ok := c.cache.get(d); ok {
		return n, nil
	}
	raw, ok, err := c.txn.Get(objectstore.TableTrie, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node %s missing during commit: %w", d, gserr.Formatting)
	}
	n, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding node %s during commit: %w", d, err)
	}
	c.cache.put(d, n)
	return n, nil
}

// storeNode persists n if an identical digest isn't already present,
// either newly in this commit or previously in the store, recording it
// in NewDigests only the first time it is actually written.
func (c *commitCtx) storeNode(n *Node) (digest.Hash, error) {
	d := n.Digest()
	if c.seen[d] {
		return d, nil
	}
	c.seen[d] = true
	_, exists, err := c.txn.Get(objectstore.TableTrie, d)
	if err != nil {
		return digest.Hash{}, err
	}
	if !exists {
		if err := c.txn.Put(objectstore.TableTrie, d, n.Encode()); err != nil {
			return digest.Hash{}, err
		}
		c.newDigests = append(c.newDigests, d)
	}
	c.cache.put(d, n)
	return d, nil
}

var errPrefixKey = fmt.Errorf("one key is a byte-prefix of another, which this trie cannot express without branch-held values: %w", gserr.Formatting)

// insert implements spec.md section 4.4 step 4's emission rules for
// writes. curDigest is the digest of the subtree currently occupying the
// position reached after consuming the bytes of fullKey not present in
// remaining. newLeaf always carries fullKey in full, so leaves never need
// further structural consumption once placed.
func (c *commitCtx) insert(curDigest digest.Hash, fullKey, remaining []byte, newLeaf *Node) (digest.Hash, error) {
	if curDigest == digest.Empty {
		return c.storeNode(newLeaf)
	}

	node, err := c.fetch(curDigest)
	if err != nil {
		return digest.Hash{}, err
	}

	switch node.Kind {
	case KindLeaf:
		if bytes.Equal(node.Key, fullKey) {
			return c.storeNode(newLeaf)
		}
		consumed := len(fullKey) - len(remaining)
		if consumed > len(node.Key) {
			return digest.Hash{}, errPrefixKey
		}
		existingSuffix := node.Key[consumed:]
		p := commonPrefixLen(existingSuffix, remaining)
		if p == len(existingSuffix) || p == len(remaining) {
			return digest.Hash{}, errPrefixKey
		}
		branch := NewBranch()
		branch.Children[existingSuffix[p]] = curDigest
		leafDigest, err := c.storeNode(newLeaf)
		if err != nil {
			return digest.Hash{}, err
		}
		branch.Children[remaining[p]] = leafDigest
		branchDigest, err := c.storeNode(branch)
		if err != nil {
			return digest.Hash{}, err
		}
		if p == 0 {
			return branchDigest, nil
		}
		return c.storeNode(NewExtension(remaining[:p], branchDigest))

	case KindExtension:
		p := commonPrefixLen(remaining, node.Affix)
		if p == len(node.Affix) {
			newChild, err := c.insert(node.Child, fullKey, remaining[p:], newLeaf)
			if err != nil {
				return digest.Hash{}, err
			}
			return c.storeNode(NewExtension(node.Affix, newChild))
		}
		if p == len(remaining) {
			return digest.Hash{}, errPrefixKey
		}
		branch := NewBranch()
		if len(node.Affix)-p-1 == 0 {
			branch.Children[node.Affix[p]] = node.Child
		} else {
			oldExtDigest, err := c.storeNode(NewExtension(node.Affix[p+1:], node.Child))
			if err != nil {
				return digest.Hash{}, err
			}
			branch.Children[node.Affix[p]] = oldExtDigest
		}
		leafDigest, err := c.storeNode(newLeaf)
		if err != nil {
			return digest.Hash{}, err
		}
		branch.Children[remaining[p]] = leafDigest
		branchDigest, err := c.storeNode(branch)
		if err != nil {
			return digest.Hash{}, err
		}
		if p == 0 {
			return branchDigest, nil
		}
		return c.storeNode(NewExtension(remaining[:p], branchDigest))

	case KindBranch:
		if len(remaining) == 0 {
			return digest.Hash{}, errPrefixKey
		}
		b := remaining[0]
		child := node.Children[b]
		var newChild digest.Hash
		if child.IsZero() {
			newChild, err = c.storeNode(newLeaf)
		} else {
			newChild, err = c.insert(child, fullKey, remaining[1:], newLeaf)
		}
		if err != nil {
			return digest.Hash{}, err
		}
		newBranch := cloneBranch(node)
		newBranch.Children[b] = newChild
		return c.storeNode(newBranch)

	default:
		return digest.Hash{}, fmt.Errorf("unreachable node kind %d: %w", node.Kind, gserr.Formatting)
	}
}

// delete implements spec.md section 4.4 step 4's collapse rules. It
// returns the new subtree digest (digest.Empty if the subtree became
// empty) and whether the key was actually present. Deleting an absent
// key is a no-op (spec.md section 3's transform invariants).
func (c *commitCtx) delete(curDigest digest.Hash, fullKey, remaining []byte) (digest.Hash, bool, error) {
	if curDigest == digest.Empty {
		return digest.Empty, false, nil
	}

	node, err := c.fetch(curDigest)
	if err != nil {
		return digest.Hash{}, false, err
	}

	switch node.Kind {
	case KindLeaf:
		if bytes.Equal(node.Key, fullKey) {
			c.touch(curDigest)
			return digest.Empty, true, nil
		}
		return curDigest, false, nil

	case KindExtension:
		p := commonPrefixLen(remaining, node.Affix)
		if p < len(node.Affix) {
			return curDigest, false, nil
		}
		newChild, existed, err := c.delete(node.Child, fullKey, remaining[p:])
		if err != nil {
			return digest.Hash{}, false, err
		}
		if !existed {
			return curDigest, false, nil
		}
		c.touch(curDigest)
		if newChild == digest.Empty {
			return digest.Empty, true, nil
		}
		merged, err := c.mergeExtensionWithChild(node.Affix, newChild)
		return merged, true, err

	case KindBranch:
		if len(remaining) == 0 {
			return curDigest, false, nil
		}
		b := remaining[0]
		child := node.Children[b]
		if child.IsZero() {
			return curDigest, false, nil
		}
		newChild, existed, err := c.delete(child, fullKey, remaining[1:])
		if err != nil {
			return digest.Hash{}, false, err
		}
		if !existed {
			return curDigest, false, nil
		}
		c.touch(curDigest)
		newBranch := cloneBranch(node)
		if newChild == digest.Empty {
			newBranch.Children[b] = digest.Hash{}
		} else {
			newBranch.Children[b] = newChild
		}
		switch newBranch.NonEmptySlots() {
		case 0:
			return digest.Empty, true, nil
		case 1:
			slot, childDig, _ := newBranch.singleChild()
			merged, err := c.mergeExtensionWithChild([]byte{slot}, childDig)
			return merged, true, err
		default:
			d, err := c.storeNode(newBranch)
			return d, true, err
		}

	default:
		return digest.Hash{}, false, fmt.Errorf("unreachable node kind %d: %w", node.Kind, gserr.Formatting)
	}
}

// mergeExtensionWithChild implements the "extensions never adjoin other
// extensions; always merge" invariant, plus the optimization that a
// child leaf already carries its full key, so wrapping it in an
// extension would add structure without adding information: doing so
// would also make a collapsed two-leaf trie hash differently than a
// freshly-committed single-leaf trie, which spec.md section 8's scenario
// 3 requires to be identical.
func (c *commitCtx) mergeExtensionWithChild(affix []byte, childDigest digest.Hash) (digest.Hash, error) {
	child, err := c.fetch(childDigest)
	if err != nil {
		return digest.Hash{}, err
	}
	switch child.Kind {
	case KindLeaf:
		return childDigest, nil
	case KindExtension:
		// The child extension is absorbed into the merged one and is no
		// longer referenced from the new subtree.
		c.touch(childDigest)
		merged := append(append([]byte(nil), affix...), child.Affix...)
		return c.storeNode(NewExtension(merged, child.Child))
	default: // KindBranch
		return c.storeNode(NewExtension(affix, childDigest))
	}
}

func cloneBranch(n *Node) *Node {
	clone := NewBranch()
	clone.Children = n.Children
	return clone
}
