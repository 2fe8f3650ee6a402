package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

type memoryCacheRepo struct {
	items       map[string]interface{}
	getErr      error
	invalidated []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string]interface{}{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	value, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if target, ok := dest.(*int); ok {
		*target = value.(int)
	}
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.items[key] = value
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.items = map[string]interface{}{}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	require.NoError(t, svc.Set(context.Background(), "k", 42, 0))
	assert.True(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, 42, out)

	require.NoError(t, svc.Invalidate(context.Background(), "report:*"))
	assert.Equal(t, []string{"report:*"}, repo.invalidated)
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDegradesOnBackendError(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.items)
}

func TestCacheKeyIsStable(t *testing.T) {
	a := cacheKey("report:summary:", map[string]string{"batch_id": "b-1"})
	b := cacheKey("report:summary:", map[string]string{"batch_id": "b-1"})
	c := cacheKey("report:summary:", map[string]string{"batch_id": "b-2"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "report:summary:")
}
