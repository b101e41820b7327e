package cache

import (
	"context"
	"sync"
	"time"
)

// RecommendationEntry is what gets cached for a recommendation lookup. Only
// product ids are kept; callers re-read products so stock is never served stale.
type RecommendationEntry struct {
	Strategy   string  `json:"strategy"`
	Category   string  `json:"category,omitempty"`
	ProductIDs []int64 `json:"product_ids"`
}

type RecommendationCache interface {
	Get(ctx context.Context, key string) (*RecommendationEntry, bool, error)
	Set(ctx context.Context, key string, value *RecommendationEntry, ttl time.Duration) error
}

type NoopRecommendationCache struct{}

func (NoopRecommendationCache) Get(_ context.Context, _ string) (*RecommendationEntry, bool, error) {
	return nil, false, nil
}

func (NoopRecommendationCache) Set(_ context.Context, _ string, _ *RecommendationEntry, _ time.Duration) error {
	return nil
}

type memoryItem struct {
	entry     RecommendationEntry
	expiresAt time.Time
}

// MemoryRecommendationCache is used when Redis is not configured.
type MemoryRecommendationCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryRecommendationCache() *MemoryRecommendationCache {
	return &MemoryRecommendationCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *MemoryRecommendationCache) Get(_ context.Context, key string) (*RecommendationEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	entry := item.entry
	entry.ProductIDs = append([]int64(nil), item.entry.ProductIDs...)
	return &entry, true, nil
}

func (c *MemoryRecommendationCache) Set(_ context.Context, key string, value *RecommendationEntry, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := *value
	entry.ProductIDs = append([]int64(nil), value.ProductIDs...)
	c.items[key] = memoryItem{entry: entry, expiresAt: c.now().Add(ttl)}
	return nil
}
