package trie

import (
	"container/list"
	"sync"

	"github.com/casper-network/casper-global-state/digest"
)

// Cache is a read-through LRU cache of decoded nodes keyed by digest, the
// same role as Carmen's common.Cache[NodeId, *shared.Shared[Node]] in
// state/mpt/node_cache.go: since nodes are immutable and content-addressed,
// a cache entry never needs invalidation, only eviction under capacity
// pressure. Exported so the overlay and globalstate facades can hold one
// across the Reader/Commit/Prune calls sharing a single object store; its
// own get/put stay package-private since only this package's algorithms
// need to populate it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[digest.Hash]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key  digest.Hash
	node *Node
}

// NewCache constructs a cache of the given capacity, in decoded nodes.
// Capacity <= 0 yields a cache that never retains anything; every
// read-path method on it is then a no-op rather than a nil-pointer error,
// so passing a nil *Cache (caching disabled entirely) is also safe.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[digest.Hash]*list.Element),
		order:    list.New(),
	}
}

func (c *Cache) get(d digest.Hash) (*Node, bool) {
	if c == nil || c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[d]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).node, true
}

func (c *Cache) put(d digest.Hash, n *Node) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[d]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).node = n
		return
	}
	el := c.order.PushFront(&cacheEntry{key: d, node: n})
	c.entries[d] = el
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*cacheEntry).key)
	}
}
