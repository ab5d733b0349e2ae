package storage

import (
	"github.com/hauke96/sigolo/v2"
	"math"
	"sync"
	"time"
)

const DefaultStoreCacheSize = 32

// StoreCache is a simple LRU (least recently used) cache of opened stores, so that queries don't have to open the
// database file of a dataset on every request. It has an internal locking mechanism and can be used in concurrent
// goroutines. The eviction strategy uses the UTC nanoseconds of the last access as measurement for the recency of
// entries.
//
// Every Get hands out a lease which must be released after use. Evicted stores are closed once their last lease has
// been released, so eviction never affects queries still using the store.
type StoreCache struct {
	stores  map[string]*cachedStore // Path to opened store
	mutex   *sync.Mutex
	maxSize int // Maximum number of stores this cache should hold
}

type cachedStore struct {
	path       string
	store      *SQLiteStore
	lastAccess int64 // UTC nanos of last access
	leases     int
	evicted    bool
}

func NewStoreCache(maxSize int) *StoreCache {
	if maxSize <= 0 {
		maxSize = DefaultStoreCacheSize
	}
	return &StoreCache{
		stores:  map[string]*cachedStore{},
		mutex:   &sync.Mutex{},
		maxSize: maxSize,
	}
}

// Get returns the cached store for the file or opens it. The file must exist. The returned function releases the lease
// on the store and must be called exactly once when the store isn't used anymore.
func (c *StoreCache) Get(path string) (*SQLiteStore, func(), error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.stores[path]
	if !ok {
		store, err := OpenSQLite(path, false)
		if err != nil {
			return nil, nil, err
		}

		entry = &cachedStore{path: path, store: store}
		c.insertUnsafe(entry)
	}

	entry.lastAccess = time.Now().UTC().UnixNano()
	entry.leases++

	once := &sync.Once{}
	release := func() {
		once.Do(func() {
			c.release(entry)
		})
	}
	return entry.store, release, nil
}

func (c *StoreCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.stores)
}

// Close empties the cache. Stores without leases are closed immediately, the others when their last lease is released.
func (c *StoreCache) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, entry := range c.stores {
		c.evictUnsafe(entry)
	}
	c.stores = map[string]*cachedStore{}
}

func (c *StoreCache) release(entry *cachedStore) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry.leases--
	if entry.evicted && entry.leases == 0 {
		closeStore(entry)
	}
}

// insertUnsafe is the core functionality of the insertion of stores. This function does NOT use locking and is meant
// for internal use only!
func (c *StoreCache) insertUnsafe(entry *cachedStore) {
	if len(c.stores) >= c.maxSize {
		// Cache is full -> evict entry that has been unused the longest
		longestUnused := c.getMinEntry()
		sigolo.Debugf("Evict store %s from cache", longestUnused.path)
		c.evictUnsafe(longestUnused)
		delete(c.stores, longestUnused.path)
	}

	c.stores[entry.path] = entry
}

// evictUnsafe marks the entry as evicted and closes it when nobody uses it anymore. This function does NOT use locking
// and is meant for internal use only!
func (c *StoreCache) evictUnsafe(entry *cachedStore) {
	entry.evicted = true
	if entry.leases == 0 {
		closeStore(entry)
	} else {
		sigolo.Debugf("Store %s still has %d leases, closing it after their release", entry.path, entry.leases)
	}
}

func closeStore(entry *cachedStore) {
	if err := entry.store.Close(); err != nil {
		sigolo.Warnf("Unable to close store %s: %+v", entry.path, err)
	}
}

// getMinEntry returns the entry that hasn't been used longest. This function does NOT use locking and is meant for
// internal use only!
func (c *StoreCache) getMinEntry() *cachedStore {
	minTimestamp := int64(math.MaxInt64)
	var minEntry *cachedStore

	for _, entry := range c.stores {
		if entry.lastAccess < minTimestamp {
			minTimestamp = entry.lastAccess
			minEntry = entry
		}
	}

	return minEntry
}
