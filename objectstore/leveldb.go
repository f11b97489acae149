package objectstore

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/casper-network/casper-global-state/digest"
)

// LevelDBStore is the production Store binding, an ordered on-disk KV
// engine (goleveldb) addressed by (table, digest) keys. goleveldb keeps
// its data as a directory of files at path; it is not a memory-mapped,
// single-file engine.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if absent) a store at path. mapSize
// bounds the block cache goleveldb keeps in memory, mirroring the
// map_size configuration knob of spec.md section 6.
func OpenLevelDBStore(path string, mapSize int64) (*LevelDBStore, error) {
	opts := &opt.Options{}
	if mapSize > 0 {
		opts.BlockCacheCapacity = int(mapSize)
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, wrapStorageErr("open", err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	if err := s.db.Close(); err != nil {
		return wrapStorageErr("close", err)
	}
	return nil
}

func (s *LevelDBStore) BeginRead() (ReadTxn, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, wrapStorageErr("begin_read", err)
	}
	return &levelDBReadTxn{snap: snap}, nil
}

func (s *LevelDBStore) BeginWrite() (WriteTxn, error) {
	txn, err := s.db.OpenTransaction()
	if err != nil {
		return nil, wrapStorageErr("begin_write", err)
	}
	return &levelDBWriteTxn{txn: txn}, nil
}

type levelDBReadTxn struct {
	snap *leveldb.Snapshot
}

func (r *levelDBReadTxn) Get(table Table, d digest.Hash) ([]byte, bool, error) {
	v, err := r.snap.Get(table.key(d), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, wrapStorageErr("get", err)
	}
	return v, true, nil
}

func (r *levelDBReadTxn) Release() {
	r.snap.Release()
}

type levelDBWriteTxn struct {
	txn *leveldb.Transaction
}

func (w *levelDBWriteTxn) Get(table Table, d digest.Hash) ([]byte, bool, error) {
	v, err := w.txn.Get(table.key(d), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, wrapStorageErr("get", err)
	}
	return v, true, nil
}

func (w *levelDBWriteTxn) Put(table Table, d digest.Hash, data []byte) error {
	// Idempotent: an unconditional Put of bytes already associated with a
	// content-addressed digest has no observable effect regardless of
	// whether the engine performs a physical write.
	if err := w.txn.Put(table.key(d), data, nil); err != nil {
		return wrapStorageErr("put", err)
	}
	return nil
}

func (w *levelDBWriteTxn) Delete(table Table, d digest.Hash) error {
	if err := w.txn.Delete(table.key(d), nil); err != nil {
		return wrapStorageErr("delete", err)
	}
	return nil
}

func (w *levelDBWriteTxn) Commit() error {
	if err := w.txn.Commit(); err != nil {
		return wrapStorageErr("commit", err)
	}
	return nil
}

func (w *levelDBWriteTxn) Rollback() error {
	w.txn.Discard()
	return nil
}
