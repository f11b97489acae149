package trie

import (
	"fmt"
	"sort"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
)

// PruneResult is the outcome of one bounded Prune call.
type PruneResult struct {
	PostRoot digest.Hash
	// Unreferenced lists digests that no longer have any path to them from
	// PostRoot. The caller deletes these from the object store, in the
	// same write transaction that publishes PostRoot, after confirming
	// (spec.md section 4.6) that no other retained root still references
	// them.
	Unreferenced []digest.Hash
	// Remaining holds the keys not processed by this call because
	// batch_size was exhausted; pass them back into the next Prune call
	// together with its returned PostRoot.
	Remaining [][]byte
}

// Prune implements spec.md section 4.6: delete up to batchSize keys from
// preRoot, and report which node digests became unreachable as a result.
// A batchSize <= 0 disables pruning outright: every key is returned
// untouched in Remaining and preRoot passes through unchanged.
func Prune(txn objectstore.WriteTxn, cache *Cache, batchSize int, preRoot digest.Hash, keysToPrune [][]byte) (PruneResult, error) {
	if batchSize <= 0 {
		return PruneResult{PostRoot: preRoot, Remaining: keysToPrune}, nil
	}

	if preRoot != digest.Empty {
		if _, ok, err := txn.Get(objectstore.TableTrie, preRoot); err != nil {
			return PruneResult{}, err
		} else if !ok {
			return PruneResult{}, fmt.Errorf("prune root %s: %w", preRoot, gserr.PruneUnreachable)
		}
	}

	sorted := append([][]byte(nil), keysToPrune...)
	sort.Slice(sorted, func(i, j int) bool { return string(sorted[i]) < string(sorted[j]) })

	batch := sorted
	var remaining [][]byte
	if len(sorted) > batchSize {
		batch, remaining = sorted[:batchSize], sorted[batchSize:]
	}

	ctx := &commitCtx{txn: txn, cache: cache, seen: map[digest.Hash]bool{}, touched: map[digest.Hash]bool{}}
	root := preRoot
	for _, key := range batch {
		newRoot, _, err := ctx.delete(root, key, key)
		if err != nil {
			return PruneResult{}, err
		}
		root = newRoot
	}

	reachable, err := reachableDigests(ctx, root)
	if err != nil {
		return PruneResult{}, err
	}

	unreferenced := make([]digest.Hash, 0, len(ctx.touched))
	for d := range ctx.touched {
		if !reachable[d] {
			unreferenced = append(unreferenced, d)
		}
	}
	sort.Slice(unreferenced, func(i, j int) bool { return unreferenced[i].String() < unreferenced[j].String() })

	return PruneResult{PostRoot: root, Unreferenced: unreferenced, Remaining: remaining}, nil
}

// reachableDigests walks every node reachable from root with an explicit
// worklist rather than recursion, visiting the whole trie under root:
// there is no cycle, since a node's digest is computed from its
// already-built children, so the traversal always terminates.
func reachableDigests(ctx *commitCtx, root digest.Hash) (map[digest.Hash]bool, error) {
	seen := map[digest.Hash]bool{}
	if root == digest.Empty {
		return seen, nil
	}
	stack := []digest.Hash{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[d] {
			continue
		}
		seen[d] = true
		node, err := ctx.fetch(d)
		if err != nil {
			return nil, err
		}
		switch node.Kind {
		case KindExtension:
			stack = append(stack, node.Child)
		case KindBranch:
			for _, c := range node.Children {
				if !c.IsZero() {
					stack = append(stack, c)
				}
			}
		}
	}
	return seen, nil
}
