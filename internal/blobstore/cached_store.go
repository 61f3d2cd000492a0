// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package blobstore

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// CachedStore layers a size-bounded in-memory LRU over a Store. Reads for
// blobs at or under BypassThreshold are served from cache when present;
// reads for larger blobs go straight to the backing Store without
// populating the cache, so a handful of large stripe reads cannot evict
// the working set of small, frequently merged blobs (spec.md §4.1).
type CachedStore struct {
	backing Store

	// BypassThreshold is the largest blob size, in bytes, eligible for
	// caching. Requests for larger blobs bypass the cache entirely.
	BypassThreshold int64

	mu    sync.Mutex
	cache *lru.Cache
}

// NewCachedStore wraps backing with an LRU holding at most maxEntries
// cached blobs, none larger than bypassThreshold bytes.
func NewCachedStore(backing Store, maxEntries int, bypassThreshold int64) *CachedStore {
	return &CachedStore{
		backing:         backing,
		BypassThreshold: bypassThreshold,
		cache:           lru.New(maxEntries),
	}
}

func (c *CachedStore) Contains(key string) bool {
	c.mu.Lock()
	if _, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	return c.backing.Contains(key)
}

func (c *CachedStore) BlobSize(key string) (int64, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return int64(len(v.([]byte))), nil
	}
	c.mu.Unlock()
	return c.backing.BlobSize(key)
}

func (c *CachedStore) Create(key string, data []byte) error {
	if err := c.backing.Create(key, data); err != nil {
		return err
	}
	c.maybeCache(key, data)
	return nil
}

func (c *CachedStore) Put(key string, data []byte, offset int64) error {
	if err := c.backing.Put(key, data, offset); err != nil {
		return err
	}
	// A partial-offset write invalidates any cached full copy; the next
	// GetAll will repopulate it from the backing store.
	c.mu.Lock()
	c.cache.Remove(key)
	c.mu.Unlock()
	return nil
}

func (c *CachedStore) PutOrCreate(key string, data []byte) error {
	if err := c.backing.PutOrCreate(key, data); err != nil {
		return err
	}
	c.maybeCache(key, data)
	return nil
}

func (c *CachedStore) GetAll(key string, buf []byte) ([]byte, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		cached := v.([]byte)
		if cap(buf) < len(cached) {
			buf = make([]byte, len(cached))
		}
		buf = buf[:len(cached)]
		copy(buf, cached)
		return buf, nil
	}
	c.mu.Unlock()

	out, err := c.backing.GetAll(key, buf)
	if err != nil {
		return nil, err
	}
	c.maybeCache(key, out)
	return out, nil
}

func (c *CachedStore) GetOffset(key string, buf []byte, offset int64) (int, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		cached := v.([]byte)
		if offset >= int64(len(cached)) {
			return 0, nil
		}
		return copy(buf, cached[offset:]), nil
	}
	c.mu.Unlock()
	return c.backing.GetOffset(key, buf, offset)
}

func (c *CachedStore) Remove(key string) error {
	c.mu.Lock()
	c.cache.Remove(key)
	c.mu.Unlock()
	return c.backing.Remove(key)
}

func (c *CachedStore) maybeCache(key string, data []byte) {
	if int64(len(data)) > c.BypassThreshold {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.mu.Lock()
	c.cache.Add(key, cp)
	c.mu.Unlock()
}

var _ Store = (*CachedStore)(nil)
