package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type memoryCacheRepo struct {
	items  map[string][]byte
	getErr error
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

func newMemoryCache() *CacheService {
	return NewCacheService(&memoryCacheRepo{items: map[string][]byte{}}, NewMetricsService(), time.Minute, zap.NewNop(), true)
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	metrics := NewMetricsService()
	repo := &memoryCacheRepo{items: map[string][]byte{}}
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, cache.Get(ctx, "dashboard:clerk", &out))

	cache.Set(ctx, "dashboard:clerk", map[string]int{"active": 3}, 0)
	cache.Set(ctx, "other:key", map[string]int{"x": 1}, 0)
	require.True(t, cache.Get(ctx, "dashboard:clerk", &out))
	assert.Equal(t, 3, out["active"])

	require.NoError(t, cache.Invalidate(ctx, dashboardCachePattern))
	assert.False(t, cache.Get(ctx, "dashboard:clerk", &out))
	assert.True(t, cache.Get(ctx, "other:key", &out))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := &memoryCacheRepo{items: map[string][]byte{}, getErr: errors.New("redis down")}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var out map[string]int
	assert.False(t, cache.Get(context.Background(), "dashboard:admin", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &memoryCacheRepo{items: map[string][]byte{}}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	cache.Set(context.Background(), "dashboard:admin", 1, 0)
	assert.Empty(t, repo.items)
	assert.False(t, cache.Enabled())

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.Invalidate(context.Background(), dashboardCachePattern))
}
