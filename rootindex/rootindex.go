// Package rootindex implements the optional block_height -> root_digest
// index spec.md section 6 mentions in passing ("ROOTS: optional
// named-root index... not interpreted by the core"). It is a thin
// convenience layered over the same object store file, under its own
// table prefix, the same namespacing convention as Carmen's
// common.TableSpace in common/scheme.go: one physical database, several
// logical collections distinguished by a key prefix.
//
// Nothing in trie, overlay, or globalstate reads this collection back;
// it exists purely so a caller that wants a height-to-root mapping isn't
// forced to hand-roll a second KV store alongside this one.
package rootindex

import (
	"encoding/binary"
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
)

// Index records and looks up root digests by block height.
type Index struct {
	store objectstore.Store
}

func New(store objectstore.Store) *Index {
	return &Index{store: store}
}

// heightKey packs height into the low 8 bytes of a digest-shaped key,
// left-padded with zeroes. It is not a content hash of anything; the
// TableRoots collection just reuses the object store's fixed 32-byte key
// width as an address space of its own, distinct from TableTrie's (a
// table prefix byte keeps the two from ever colliding).
func heightKey(height uint64) digest.Hash {
	var buf [digest.Size]byte
	binary.BigEndian.PutUint64(buf[digest.Size-8:], height)
	return buf
}

// Record durably associates height with root. Overwriting an existing
// height is allowed; the caller is responsible for not doing so
// accidentally (spec.md: the core does not interpret this collection).
func (idx *Index) Record(height uint64, root digest.Hash) error {
	txn, err := idx.store.BeginWrite()
	if err != nil {
		return err
	}
	if err := txn.Put(objectstore.TableRoots, heightKey(height), root.Bytes()); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()
}

// Lookup returns the root digest recorded at height, or ok=false if
// none was ever recorded.
func (idx *Index) Lookup(height uint64) (root digest.Hash, ok bool, err error) {
	rtxn, err := idx.store.BeginRead()
	if err != nil {
		return digest.Hash{}, false, err
	}
	defer rtxn.Release()
	data, found, err := rtxn.Get(objectstore.TableRoots, heightKey(height))
	if err != nil {
		return digest.Hash{}, false, err
	}
	if !found {
		return digest.Hash{}, false, nil
	}
	if len(data) != digest.Size {
		return digest.Hash{}, false, fmt.Errorf("root index entry at height %d is %d bytes, want %d: %w", height, len(data), digest.Size, gserr.Formatting)
	}
	return digest.FromBytes(data), true, nil
}
