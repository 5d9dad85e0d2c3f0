package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/logger"
	"roadtrip-server/models"
)

func sampleEntry() *CacheEntry {
	return &CacheEntry{
		Result: &models.DiscoveryResult{
			POIs: []models.POI{
				{ID: "1", Name: "Lost Lake", Photos: []string{"a.jpg"}, PriceLevel: intPtr(1)},
				{ID: "2", Name: "Tamanawas Falls"},
			},
			StrategyRequested: models.StrategyHybrid,
			StrategyUsed:      models.StrategyHybrid,
			ResponseTimeMs:    842,
		},
		RequestedStrategy: models.StrategyHybrid,
		MaxResults:        10,
	}
}

func TestNewCacheKey_RoundsOrigin(t *testing.T) {
	a := NewCacheKey(models.GeoPoint{Latitude: 45.4979, Longitude: -121.8209}, "Attraction", models.StrategyHybrid, 0.01)
	b := NewCacheKey(models.GeoPoint{Latitude: 45.5021, Longitude: -121.8160}, "attraction", models.StrategyHybrid, 0)
	c := NewCacheKey(models.GeoPoint{Latitude: 45.4979, Longitude: -121.8209}, "attraction", models.StrategyLocalOnly, 0.01)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "45.5000:-121.8200:attraction:HYBRID:g0", a.String())
}

func TestCacheEntry_Covers(t *testing.T) {
	entry := sampleEntry() // 2 POIs computed for maxResults 10
	assert.True(t, entry.Covers(5))
	assert.True(t, entry.Covers(50)) // ran out of candidates, nothing more to find

	full := &CacheEntry{Result: &models.DiscoveryResult{POIs: make([]models.POI, 3)}, MaxResults: 3}
	assert.True(t, full.Covers(3))
	assert.False(t, full.Covers(4))
	assert.False(t, (*CacheEntry)(nil).Covers(1))
}

func TestMemoryCache_TTL(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	key := NewCacheKey(lostLake, "attraction", models.StrategyHybrid, 0)

	cache.Put(ctx, key, sampleEntry(), time.Minute)
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleEntry().Result, got.Result)

	now = now.Add(59 * time.Second)
	_, ok = cache.Get(ctx, key)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	key := NewCacheKey(lostLake, "park", models.StrategyRemoteOnly, 0)

	entry := sampleEntry()
	cache.Put(ctx, key, entry, time.Minute)
	entry.Result.POIs[0].Name = "mutated after put"

	first, ok := cache.Get(ctx, key)
	require.True(t, ok)
	first.Result.POIs[0].Photos[0] = "mutated after get"
	*first.Result.POIs[0].PriceLevel = 4

	second, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "Lost Lake", second.Result.POIs[0].Name)
	assert.Equal(t, "a.jpg", second.Result.POIs[0].Photos[0])
	assert.Equal(t, 1, *second.Result.POIs[0].PriceLevel)
}

func TestMemoryCache_ZeroTTLStoresNothing(t *testing.T) {
	cache := NewMemoryCache()
	key := NewCacheKey(lostLake, "park", models.StrategyHybrid, 0)
	cache.Put(context.Background(), key, sampleEntry(), 0)
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	key := NewCacheKey(lostLake, "cafe", models.StrategyHybrid, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cache.Put(ctx, key, sampleEntry(), time.Minute)
		}()
		go func() {
			defer wg.Done()
			if got, ok := cache.Get(ctx, key); ok {
				assert.Len(t, got.Result.POIs, 2)
			}
		}()
	}
	wg.Wait()
}

func TestMemoryCache_Purge(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	cache.Put(ctx, NewCacheKey(lostLake, "a", models.StrategyHybrid, 0), sampleEntry(), time.Second)
	cache.Put(ctx, NewCacheKey(lostLake, "b", models.StrategyHybrid, 0), sampleEntry(), time.Hour)
	now = now.Add(time.Minute)
	cache.Purge()
	assert.Equal(t, 1, cache.Len())
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisCache_RoundTripAndExpiry(t *testing.T) {
	client, mr := newTestRedis(t)
	cache := NewRedisCache(client, logger.Discard())
	ctx := context.Background()
	key := NewCacheKey(lostLake, "attraction", models.StrategyHybrid, 0)

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Put(ctx, key, sampleEntry(), 90*time.Second)
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleEntry().Result, got.Result)
	assert.Equal(t, models.StrategyHybrid, got.RequestedStrategy)
	assert.Equal(t, 10, got.MaxResults)

	mr.FastForward(91 * time.Second)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	client, mr := newTestRedis(t)
	cache := NewRedisCache(client, logger.Discard())
	key := NewCacheKey(lostLake, "attraction", models.StrategyHybrid, 0)

	require.NoError(t, mr.Set(redisCachePrefix+key.String(), "{not json"))
	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestRedisCache_UnavailableServerIsMiss(t *testing.T) {
	client, mr := newTestRedis(t)
	cache := NewRedisCache(client, logger.Discard())
	key := NewCacheKey(lostLake, "attraction", models.StrategyHybrid, 0)
	mr.Close()

	cache.Put(context.Background(), key, sampleEntry(), time.Minute)
	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)
}
