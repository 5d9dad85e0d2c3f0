package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// DefaultCacheTTL is short: on a road trip the origin moves quickly.
const DefaultCacheTTL = 120 * time.Second

// DefaultCacheGrid rounds origins to roughly one kilometer.
const DefaultCacheGrid = 0.01

// CacheKey identifies a cached discovery: coarse origin, normalized category,
// the requested strategy and the generation of the preferences ranked
// against.
type CacheKey struct {
	Lat         float64
	Lon         float64
	Category    string
	Strategy    models.Strategy
	Preferences uint64
}

// NewCacheKey snaps origin to a grid of gridDegrees.
func NewCacheKey(origin models.GeoPoint, category string, strategy models.Strategy, gridDegrees float64) CacheKey {
	if gridDegrees <= 0 {
		gridDegrees = DefaultCacheGrid
	}
	return CacheKey{
		Lat:      geo.RoundToGrid(origin.Latitude, gridDegrees),
		Lon:      geo.RoundToGrid(origin.Longitude, gridDegrees),
		Category: strings.ToLower(category),
		Strategy: strategy,
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%.4f:%.4f:%s:%s:g%d", k.Lat, k.Lon, k.Category, k.Strategy, k.Preferences)
}

// CacheEntry is what the orchestrator stores per key.
type CacheEntry struct {
	Result            *models.DiscoveryResult `json:"result"`
	RequestedStrategy models.Strategy         `json:"requested_strategy"`
	MaxResults        int                     `json:"max_results"`
	StoredAt          time.Time               `json:"stored_at"`
}

// Covers reports whether the entry can answer a request for maxResults
// items: either it was computed for at least that many, or the pipeline ran
// out of candidates before hitting its own limit.
func (e *CacheEntry) Covers(maxResults int) bool {
	if e == nil || e.Result == nil {
		return false
	}
	return e.MaxResults >= maxResults || len(e.Result.POIs) < e.MaxResults
}

// ResultCache memoizes discovery results for a short TTL. Implementations
// must be safe for concurrent use and must never hand out shared mutable
// state: last write per key wins.
type ResultCache interface {
	Get(ctx context.Context, key CacheKey) (*CacheEntry, bool)
	Put(ctx context.Context, key CacheKey, entry *CacheEntry, ttl time.Duration)
}

type memoryItem struct {
	entry     *CacheEntry
	expiresAt time.Time
}

// MemoryCache is an in-process ResultCache with lazy expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[CacheKey]memoryItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[CacheKey]memoryItem),
		now:   time.Now,
	}
}

// Get returns a copy of the entry stored under key, if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key CacheKey) (*CacheEntry, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		// Only drop it if nobody replaced it meanwhile.
		if current, still := c.items[key]; still && current.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return cloneEntry(item.entry), true
}

// Put stores a copy of entry. A non-positive ttl stores nothing.
func (c *MemoryCache) Put(_ context.Context, key CacheKey, entry *CacheEntry, ttl time.Duration) {
	if entry == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{entry: cloneEntry(entry), expiresAt: c.now().Add(ttl)}
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge drops expired entries.
func (c *MemoryCache) Purge() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, k)
		}
	}
}

func cloneEntry(e *CacheEntry) *CacheEntry {
	out := *e
	out.Result = e.Result.Clone()
	return &out
}
