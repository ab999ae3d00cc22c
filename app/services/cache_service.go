package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	result       *models.ParseResult
	rulesVersion string
	storedAt     time.Time
}

// CacheService in-memory LRU cache with expiry
type CacheService struct {
	cache        *expirable.LRU[string, memoryEntry]
	ttl          time.Duration
	rulesVersion atomic.Value

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService creates an LRU of size entries. ttl 0 keeps entries until evicted.
func NewCacheService(size int, ttl time.Duration, rulesVersion string) (*CacheService, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	cs := &CacheService{
		cache: expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		ttl:   ttl,
	}
	cs.rulesVersion.Store(rulesVersion)
	return cs, nil
}

// Get returns a cached result
func (cs *CacheService) Get(ctx context.Context, key string) (*models.ParseResult, bool, error) {
	entry, ok := cs.cache.Get(key)
	if !ok {
		cs.misses.Add(1)
		return nil, false, nil
	}
	cs.hits.Add(1)
	return entry.result, true, nil
}

// Set stores a result
func (cs *CacheService) Set(ctx context.Context, key string, result *models.ParseResult) error {
	cs.cache.Add(key, memoryEntry{result: result, rulesVersion: cs.rulesVersion.Load().(string), storedAt: time.Now()})
	return nil
}

func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.cache.Remove(key)
	return nil
}

func (cs *CacheService) Clear(ctx context.Context) error {
	cs.cache.Purge()
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

// InvalidateByRulesVersion removes entries stored under another rules version
func (cs *CacheService) InvalidateByRulesVersion(ctx context.Context, rulesVersion string) error {
	for _, key := range cs.cache.Keys() {
		if entry, ok := cs.cache.Peek(key); ok && entry.rulesVersion != rulesVersion {
			cs.cache.Remove(key)
		}
	}
	cs.rulesVersion.Store(rulesVersion)
	return nil
}

// Size number of live entries
func (cs *CacheService) Size() int {
	return cs.cache.Len()
}

func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	return newCacheStats(cs.hits.Load(), cs.misses.Load(), int64(cs.cache.Len())), nil
}

func (cs *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	return cs.cache.Contains(key), nil
}

func (cs *CacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	entry, ok := cs.cache.Peek(key)
	if !ok || cs.ttl <= 0 {
		return 0, nil
	}
	remaining := cs.ttl - time.Since(entry.storedAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Close nothing to release for the in-memory cache
func (cs *CacheService) Close() error {
	return nil
}
