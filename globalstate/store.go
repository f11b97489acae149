// Package globalstate is the top-level facade, section 4.7's addition to
// spec.md: it ties objectstore, trie, and overlay together the way
// state/state.go's top-level State interface ties together the teacher's
// backends, and archive_trie.go's OpenArchiveTrie shows the
// open/configure/close lifecycle Open below follows.
package globalstate

import (
	"fmt"
	"log"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/gsconfig"
	"github.com/casper-network/casper-global-state/gserr"
	"github.com/casper-network/casper-global-state/objectstore"
	"github.com/casper-network/casper-global-state/overlay"
	"github.com/casper-network/casper-global-state/trie"
)

// Store is the ready-to-use global state: a configured object store plus
// the shared node cache every Checkout and Prune call reads through.
type Store struct {
	cfg   gsconfig.Config
	store objectstore.Store
	cache *trie.Cache
}

// Open validates cfg and opens (creating if absent) the backing object
// store at cfg.StorePath. An empty StorePath opens an in-memory store,
// useful for tests and tools that don't need persistence across
// restarts, the same escape hatch Carmen's in-memory backends provide
// alongside their file-backed ones.
func Open(cfg gsconfig.Config) (*Store, error) {
	if cfg.MaxKeyBytes <= 0 {
		return nil, fmt.Errorf("max_key_bytes must be positive: %w", gserr.Formatting)
	}
	if cfg.MaxValueBytes <= 0 {
		return nil, fmt.Errorf("max_value_bytes must be positive: %w", gserr.Formatting)
	}

	var backing objectstore.Store
	var err error
	if cfg.StorePath == "" {
		backing = objectstore.NewMemStore()
	} else {
		backing, err = objectstore.OpenLevelDBStore(cfg.StorePath, cfg.MapSize)
		if err != nil {
			return nil, err
		}
	}

	log.Printf("globalstate: opened store %q at %q (prune_batch_size=%d)", cfg.Name, cfg.StorePath, cfg.PruneBatchSize)
	return &Store{
		cfg:   cfg,
		store: backing,
		cache: trie.NewCache(cfg.NodeCacheSize),
	}, nil
}

// Checkout implements spec.md section 6's checkout(root) -> Overlay |
// RootNotFound: open a scratch overlay against root, which must already
// be a published trie root, or the empty root.
func (s *Store) Checkout(root digest.Hash) (*overlay.Overlay, error) {
	return overlay.Open(s.store, s.cache, s.cfg, root)
}

// Prune implements spec.md section 4.6, driven in batches of
// cfg.PruneBatchSize: repeatedly call trie.Prune until every key is
// processed, deleting each batch's unreferenced digests from the object
// store in the same write transaction that advances the root. A
// prune_batch_size of 0 disables pruning, matching spec.md section 6's
// default.
func (s *Store) Prune(root digest.Hash, keys [][]byte) (digest.Hash, error) {
	if s.cfg.PruneBatchSize <= 0 {
		return root, nil
	}
	remaining := keys
	for len(remaining) > 0 {
		txn, err := s.store.BeginWrite()
		if err != nil {
			return digest.Hash{}, err
		}
		res, err := trie.Prune(txn, s.cache, s.cfg.PruneBatchSize, root, remaining)
		if err != nil {
			txn.Rollback()
			return digest.Hash{}, err
		}
		for _, d := range res.Unreferenced {
			if err := txn.Delete(objectstore.TableTrie, d); err != nil {
				txn.Rollback()
				return digest.Hash{}, err
			}
		}
		if err := txn.Commit(); err != nil {
			return digest.Hash{}, err
		}
		root = res.PostRoot
		remaining = res.Remaining
	}
	return root, nil
}

// Close releases the backing object store.
func (s *Store) Close() error {
	return s.store.Close()
}
