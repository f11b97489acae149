// Package overlay implements the scratch overlay of spec.md section 4.5:
// a per-block, in-memory accumulator of pending transforms that serves
// reads with write-through against a base root, merges per-deploy
// journals, supports deploy-level rollback via checkpoints, and flushes
// to a single atomic trie commit.
//
// The checkpoint/rollback shape mirrors Carmen's state.Update, which
// Carmen's block processor accumulates per-transaction before a single
// end-of-block Apply; here the granularity is per-deploy within a block
// instead of per-transaction within nothing larger, but the
// accumulate-then-commit-once discipline is the same.
package overlay

import (
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gsconfig"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
	"github.com/casper-network/casper-global-state/trie"
)

// Journal is one deploy's set of (key, transform) effects, applied to an
// Overlay as a unit.
type Journal []trie.Entry

// pendingState is the overlay's mutable accumulator: a merged transform
// per touched key, plus the original byte form of each touched key for
// Flush. Reads of keys with no pending transform are not cached; each
// one walks the base trie again.
type pendingState struct {
	transforms map[string]trie.Transform
	keyBytes   map[string][]byte
}

func newPendingState() *pendingState {
	return &pendingState{
		transforms: map[string]trie.Transform{},
		keyBytes:   map[string][]byte{},
	}
}

func (p *pendingState) clone() *pendingState {
	cp := newPendingState()
	for k, v := range p.transforms {
		cp.transforms[k] = v
	}
	for k, v := range p.keyBytes {
		cp.keyBytes[k] = v
	}
	return cp
}

// Overlay is spec.md section 4.5's scratch overlay. It holds no object
// store write lock: reads open a fresh ReadTxn against baseRoot, and
// Flush is the only operation that acquires a WriteTxn, per spec.md
// section 5's policy that the writer is held only during publish.
type Overlay struct {
	store    objectstore.Store
	cache    *trie.Cache
	limits   trie.Limits
	baseRoot digest.Hash

	pending     *pendingState
	checkpoints []*pendingState
}

// Open implements spec.md section 4.5's open(base_root). base_root must
// already exist in the object store, or the empty root.
func Open(store objectstore.Store, cache *trie.Cache, cfg gsconfig.Config, baseRoot digest.Hash) (*Overlay, error) {
	if baseRoot != digest.Empty {
		rtxn, err := store.BeginRead()
		if err != nil {
			return nil, err
		}
		defer rtxn.Release()
		if _, _, err := trie.NewReader(rtxn, cache).Read(baseRoot, nil); err != nil {
			return nil, err
		}
	}
	return &Overlay{
		store:    store,
		cache:    cache,
		limits:   trie.Limits{MaxKeyBytes: cfg.MaxKeyBytes, MaxValueBytes: cfg.MaxValueBytes},
		baseRoot: baseRoot,
		pending:  newPendingState(),
	}, nil
}

// Read implements spec.md section 4.5's read(overlay, key): resolve
// against the overlay's accumulated transforms first, falling back to a
// base-root trie lookup. found=false with a nil error means the key is
// genuinely absent.
func (o *Overlay) Read(key []byte) (value trie.TaggedValue, found bool, err error) {
	ks := string(key)
	if t, ok := o.pending.transforms[ks]; ok {
		if t.Kind == trie.TIdentity {
			// identity records a read without changing presence; a key only
			// ever read (never written) must report exactly the base lookup.
			return o.readBase(key)
		}
		current, present, err := o.readBase(key)
		if err != nil {
			return trie.TaggedValue{}, false, err
		}
		v, deleted, err := trie.Apply(current, present, t)
		if err != nil {
			return trie.TaggedValue{}, false, err
		}
		return v, !deleted, nil
	}
	return o.readBase(key)
}

func (o *Overlay) readBase(key []byte) (trie.TaggedValue, bool, error) {
	rtxn, err := o.store.BeginRead()
	if err != nil {
		return trie.TaggedValue{}, false, err
	}
	defer rtxn.Release()
	return trie.NewReader(rtxn, o.cache).Read(o.baseRoot, key)
}

// Apply implements spec.md section 4.5's apply(overlay, journal): push a
// checkpoint of the current pending state, then merge the journal's
// transforms into it key by key per the composition table of section
// 4.5 / transform.Merge. Apply fails only when a key exceeds
// max_key_bytes (gserr.KeyTooLong), checked before anything is merged;
// a transform that cannot ultimately be resolved (overflow, type
// mismatch) is captured as a poisoned transform and only surfaces an
// error at Flush.
func (o *Overlay) Apply(j Journal) error {
	for _, e := range j {
		if len(e.Key) > o.limits.MaxKeyBytes {
			return fmt.Errorf("key of %d bytes exceeds max_key_bytes=%d: %w", len(e.Key), o.limits.MaxKeyBytes, gserr.KeyTooLong)
		}
	}
	o.checkpoints = append(o.checkpoints, o.pending.clone())
	for _, e := range j {
		ks := string(e.Key)
		o.pending.keyBytes[ks] = e.Key
		if existing, ok := o.pending.transforms[ks]; ok {
			o.pending.transforms[ks] = trie.Merge(existing, e.Transform)
		} else {
			o.pending.transforms[ks] = trie.Merge(trie.Identity(), e.Transform)
		}
	}
	return nil
}

// DiscardPending implements spec.md section 4.5's discard_pending(overlay):
// drop the most recently applied journal, restoring the overlay exactly
// to its state before that Apply call. Returns gserr.Formatting if there
// is no checkpoint to pop, since that indicates a caller bug (rollback
// without a matching apply) rather than recoverable state.
func (o *Overlay) DiscardPending() error {
	n := len(o.checkpoints)
	if n == 0 {
		return fmt.Errorf("discard_pending called with no pending checkpoint: %w", gserr.Formatting)
	}
	o.pending = o.checkpoints[n-1]
	o.checkpoints = o.checkpoints[:n-1]
	return nil
}

// Flush implements spec.md section 4.5's flush(overlay) -> post_root: it
// computes the overlay's final entry set and invokes trie.Commit in a
// single write transaction. On success, the overlay's checkpoints are
// cleared and its base root advances to the new post_root, so a caller
// may continue accumulating against the flushed state without a fresh
// Open. On failure, nothing is persisted and the overlay's pending state
// is left exactly as it was (spec.md section 7: "any error inside flush
// aborts the entire block-level commit; the overlay is dropped" — the
// caller is expected to discard this Overlay value on error, Flush just
// avoids leaving partially-applied server-side state to discard).
func (o *Overlay) Flush() (trie.CommitResult, error) {
	entries := make([]trie.Entry, 0, len(o.pending.transforms))
	for ks, t := range o.pending.transforms {
		entries = append(entries, trie.Entry{Key: o.pending.keyBytes[ks], Transform: t})
	}

	txn, err := o.store.BeginWrite()
	if err != nil {
		return trie.CommitResult{}, err
	}
	res, err := trie.Commit(txn, o.cache, o.limits, o.baseRoot, entries)
	if err != nil {
		txn.Rollback()
		return trie.CommitResult{}, err
	}
	if err := txn.Commit(); err != nil {
		return trie.CommitResult{}, err
	}

	o.baseRoot = res.PostRoot
	o.pending = newPendingState()
	o.checkpoints = nil
	return res, nil
}

// BaseRoot reports the overlay's current base root: the root Open was
// called with, or the post_root of the most recent successful Flush.
func (o *Overlay) BaseRoot() digest.Hash {
	return o.baseRoot
}
