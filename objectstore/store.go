// Package objectstore implements the content-addressed object store of
// spec.md section 4.2: an append-only map from digest to encoded bytes,
// backed by an ordered on-disk key/value database offering read snapshots
// and write transactions.
//
// The production binding uses github.com/syndtr/goleveldb, the same
// engine Carmen wraps in common/ldb.go and backend/store/ldb: goleveldb's
// *leveldb.DB already exposes GetSnapshot for consistent point-in-time
// reads and OpenTransaction for an exclusive, serialized write scope, so
// this package is a thin adapter rather than a reimplementation.
package objectstore

import (
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gserr"
)

// Table is a namespace prefix distinguishing logical collections sharing
// one physical database, the same convention as Carmen's
// common.TableSpace in common/scheme.go.
type Table byte

const (
	// TableTrie holds digest -> encoded trie node bytes.
	TableTrie Table = 't'
	// TableRoots holds the caller-maintained block_height -> root digest
	// index described in spec.md section 6. The core never reads it.
	TableRoots Table = 'r'
)

func (t Table) key(d digest.Hash) []byte {
	out := make([]byte, 1+digest.Size)
	out[0] = byte(t)
	copy(out[1:], d[:])
	return out
}

// ReadTxn is a consistent, point-in-time snapshot. Multiple concurrent
// ReadTxns are allowed.
type ReadTxn interface {
	// Get returns the bytes stored under d in table, or ok=false if absent.
	Get(table Table, d digest.Hash) (data []byte, ok bool, err error)
	// Release returns the snapshot's resources. Safe to call more than
	// once.
	Release()
}

// WriteTxn is an exclusive transaction; the store serializes WriteTxns
// against one another.
type WriteTxn interface {
	Get(table Table, d digest.Hash) (data []byte, ok bool, err error)
	// Put is idempotent: writing a digest already present is a no-op as
	// far as the caller can observe, though the underlying engine may
	// still perform the write.
	Put(table Table, d digest.Hash, data []byte) error
	// Delete removes a stored digest. Used only by the pruner.
	Delete(table Table, d digest.Hash) error
	// Commit durably publishes every Put/Delete applied in this
	// transaction. On crash between Put and Commit, no partial writes are
	// visible on recovery.
	Commit() error
	// Rollback discards every Put/Delete applied in this transaction. Has
	// no effect after Commit has been called.
	Rollback() error
}

// Store is the abstract object store operated on by the trie reader,
// writer, and pruner.
type Store interface {
	BeginRead() (ReadTxn, error)
	BeginWrite() (WriteTxn, error)
	Close() error
}

// wrapStorageErr tags a backing-engine failure as gserr.StorageIO so
// callers can distinguish "the database is broken" from "the key/digest
// doesn't exist", which is reported as ok=false, err=nil.
func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("objectstore: %s: %w", op, joinStorageIO(err))
}

func joinStorageIO(err error) error {
	return fmt.Errorf("%v: %w", err, gserr.StorageIO)
}
