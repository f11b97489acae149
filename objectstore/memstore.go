package objectstore

import (
	"sync"

	"github.com/casper-network/casper-global-state/digest"
)

// MemStore is an in-memory Store, mainly intended for debugging and unit
// testing, the same role as Carmen's OpenInMemoryHashStore: cheap to
// construct, and semantically interchangeable with LevelDBStore by
// satisfying the same Store interface.
type MemStore struct {
	mu   sync.RWMutex
	data map[Table]map[digest.Hash][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: map[Table]map[digest.Hash][]byte{
			TableTrie:  {},
			TableRoots: {},
		},
	}
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) BeginRead() (ReadTxn, error) {
	s.mu.RLock()
	snapshot := make(map[Table]map[digest.Hash][]byte, len(s.data))
	for table, m := range s.data {
		cp := make(map[digest.Hash][]byte, len(m))
		for k, v := range m {
			cp[k] = v
		}
		snapshot[table] = cp
	}
	s.mu.RUnlock()
	return &memReadTxn{snapshot: snapshot}, nil
}

func (s *MemStore) BeginWrite() (WriteTxn, error) {
	s.mu.Lock()
	return &memWriteTxn{store: s, pending: map[Table]map[digest.Hash][]byte{}, deleted: map[Table]map[digest.Hash]bool{}}, nil
}

type memReadTxn struct {
	snapshot map[Table]map[digest.Hash][]byte
}

func (r *memReadTxn) Get(table Table, d digest.Hash) ([]byte, bool, error) {
	v, ok := r.snapshot[table][d]
	return v, ok, nil
}

func (r *memReadTxn) Release() {}

type memWriteTxn struct {
	store   *MemStore
	pending map[Table]map[digest.Hash][]byte
	deleted map[Table]map[digest.Hash]bool
	done    bool
}

func (w *memWriteTxn) Get(table Table, d digest.Hash) ([]byte, bool, error) {
	if w.deleted[table][d] {
		return nil, false, nil
	}
	if v, ok := w.pending[table][d]; ok {
		return v, true, nil
	}
	v, ok := w.store.data[table][d]
	return v, ok, nil
}

func (w *memWriteTxn) Put(table Table, d digest.Hash, data []byte) error {
	if w.pending[table] == nil {
		w.pending[table] = map[digest.Hash][]byte{}
	}
	w.pending[table][d] = data
	if w.deleted[table] != nil {
		delete(w.deleted[table], d)
	}
	return nil
}

func (w *memWriteTxn) Delete(table Table, d digest.Hash) error {
	if w.deleted[table] == nil {
		w.deleted[table] = map[digest.Hash]bool{}
	}
	w.deleted[table][d] = true
	if w.pending[table] != nil {
		delete(w.pending[table], d)
	}
	return nil
}

func (w *memWriteTxn) Commit() error {
	if w.done {
		return nil
	}
	defer func() { w.done = true; w.store.mu.Unlock() }()
	for table, m := range w.pending {
		if w.store.data[table] == nil {
			w.store.data[table] = map[digest.Hash][]byte{}
		}
		for k, v := range m {
			w.store.data[table][k] = v
		}
	}
	for table, m := range w.deleted {
		for k := range m {
			delete(w.store.data[table], k)
		}
	}
	return nil
}

func (w *memWriteTxn) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	w.store.mu.Unlock()
	return nil
}
