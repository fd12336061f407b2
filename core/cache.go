package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCacheNotFound is returned on a cache miss.
var ErrCacheNotFound = errors.New("identity not found in cache")

// CacheConfig configures the identity read cache.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// IdentityCache is an in-memory read cache for method-key lookups.
// Authenticate traffic is overwhelmingly reads of the same few keys;
// caching them keeps the hot path off the backend.
type IdentityCache struct {
	cache  map[string]*cachedRecord // key: strategy + "\x00" + method key
	byID   map[string][]string      // identity id -> cache keys, for invalidation
	mu     sync.RWMutex
	ttl    time.Duration
	maxSize int

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type cachedRecord struct {
	identity *Identity
	cachedAt time.Time
}

func cacheKey(strategy, key string) string {
	return strategy + "\x00" + key
}

func NewIdentityCache(c CacheConfig) *IdentityCache {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxSize == 0 {
		c.MaxSize = 500
	}

	return &IdentityCache{
		cache:   make(map[string]*cachedRecord),
		byID:    make(map[string][]string),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
	}
}

func (c *IdentityCache) Get(strategy, key string) (*Identity, error) {
	k := cacheKey(strategy, key)

	c.mu.RLock()
	record, exists := c.cache[k]
	c.mu.RUnlock()

	if !exists || time.Since(record.cachedAt) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		if exists {
			c.remove(k)
		}
		return nil, ErrCacheNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	return record.identity, nil
}

func (c *IdentityCache) Set(strategy, key string, identity *Identity) {
	k := cacheKey(strategy, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction if full
	if len(c.cache) >= c.maxSize {
		for victim := range c.cache {
			c.dropLocked(victim)
			atomic.AddInt64(&c.evictions, 1)
			break
		}
	}

	c.cache[k] = &cachedRecord{identity: identity, cachedAt: time.Now()}
	c.byID[identity.ID] = append(c.byID[identity.ID], k)
	atomic.AddInt64(&c.sets, 1)
}

// InvalidateIdentity drops every cached entry for the given identity.
// Called on any write path that touches it.
func (c *IdentityCache) InvalidateIdentity(identityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.byID[identityID] {
		if _, ok := c.cache[k]; ok {
			delete(c.cache, k)
			atomic.AddInt64(&c.deletes, 1)
		}
	}
	delete(c.byID, identityID)
}

func (c *IdentityCache) remove(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(k)
}

func (c *IdentityCache) dropLocked(k string) {
	record, ok := c.cache[k]
	if !ok {
		return
	}
	delete(c.cache, k)
	atomic.AddInt64(&c.deletes, 1)

	id := record.identity.ID
	keys := c.byID[id][:0]
	for _, existing := range c.byID[id] {
		if existing != k {
			keys = append(keys, existing)
		}
	}
	if len(keys) == 0 {
		delete(c.byID, id)
	} else {
		c.byID[id] = keys
	}
}

func (c *IdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *IdentityCache) Stats() CacheStats {
	return CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}

// cachedStorage layers the identity cache over an AuthStorage.
// Reads by method key hit the cache first; every identity write
// invalidates the touched identity so stale hashes or verified flags
// never survive a mutation.
type cachedStorage struct {
	AuthStorage
	cache *IdentityCache
}

// NewCachedStorage wraps storage with the identity read cache.
func NewCachedStorage(storage AuthStorage, cache *IdentityCache) AuthStorage {
	if cache == nil {
		return storage
	}
	return &cachedStorage{AuthStorage: storage, cache: cache}
}

func (s *cachedStorage) GetIdentityByMethodKey(ctx context.Context, strategy, key string) (*Identity, error) {
	if identity, err := s.cache.Get(strategy, key); err == nil {
		return identity, nil
	}

	identity, err := s.AuthStorage.GetIdentityByMethodKey(ctx, strategy, key)
	if err != nil {
		return nil, err
	}

	s.cache.Set(strategy, key, identity)
	return identity, nil
}

func (s *cachedStorage) AttachMethod(ctx context.Context, identityID string, m *Method) error {
	err := s.AuthStorage.AttachMethod(ctx, identityID, m)
	if err == nil {
		s.cache.InvalidateIdentity(identityID)
	}
	return err
}

func (s *cachedStorage) UpdateMethod(ctx context.Context, identityID, strategy string, patch MethodPatch) error {
	err := s.AuthStorage.UpdateMethod(ctx, identityID, strategy, patch)
	if err == nil {
		s.cache.InvalidateIdentity(identityID)
	}
	return err
}

func (s *cachedStorage) TouchLastLogin(ctx context.Context, identityID string, at time.Time) error {
	err := s.AuthStorage.TouchLastLogin(ctx, identityID, at)
	if err == nil {
		s.cache.InvalidateIdentity(identityID)
	}
	return err
}
