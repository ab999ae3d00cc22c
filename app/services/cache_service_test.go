package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap/zaptest"
)

func cachedResult(id string) *models.ParseResult {
	return &models.ParseResult{
		ID: id,
		Address: &models.StructuredAddress{
			ID:      id,
			Address: models.PoBox{BoxNumber: "12"},
			Postal:  models.PostalCode{Code: 3000},
			City:    "Bern",
			Country: "CH",
		},
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("v1", []string{"Hans Muster", "3000 Bern"})
	assert.True(t, strings.HasPrefix(a, "sha256:"))
	assert.Equal(t, a, Fingerprint("v1", []string{"Hans Muster", "3000 Bern"}))
	assert.NotEqual(t, a, Fingerprint("v2", []string{"Hans Muster", "3000 Bern"}))
	assert.NotEqual(t, a, Fingerprint("v1", []string{"Hans Muster 3000", "Bern"}))
}

func TestCacheService(t *testing.T) {
	ctx := context.Background()
	cs, err := NewCacheService(2, time.Hour, "v1")
	require.NoError(t, err)

	_, found, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cs.Set(ctx, "a", cachedResult("1")))
	got, found, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", got.ID)

	ttl, err := cs.GetTTL(ctx, "a")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, cs.Set(ctx, "b", cachedResult("2")))
	require.NoError(t, cs.Set(ctx, "c", cachedResult("3")))
	ok, _ := cs.Exists(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, cs.Size())

	stats, err := cs.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, int64(2), stats.TotalItems)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)

	require.NoError(t, cs.Delete(ctx, "b"))
	ok, _ = cs.Exists(ctx, "b")
	assert.False(t, ok)

	require.NoError(t, cs.Clear(ctx))
	assert.Equal(t, 0, cs.Size())
}

func TestCacheServiceInvalidateByRulesVersion(t *testing.T) {
	ctx := context.Background()
	cs, err := NewCacheService(10, 0, "v1")
	require.NoError(t, err)
	require.NoError(t, cs.Set(ctx, "old", cachedResult("1")))

	require.NoError(t, cs.InvalidateByRulesVersion(ctx, "v2"))
	ok, _ := cs.Exists(ctx, "old")
	assert.False(t, ok)

	require.NoError(t, cs.Set(ctx, "new", cachedResult("2")))
	require.NoError(t, cs.InvalidateByRulesVersion(ctx, "v2"))
	ok, _ = cs.Exists(ctx, "new")
	assert.True(t, ok)

	ttl, err := cs.GetTTL(ctx, "new")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestNewCacheServiceRejectsZeroSize(t *testing.T) {
	_, err := NewCacheService(0, time.Minute, "v1")
	assert.Error(t, err)
}

type brokenCache struct{ *CacheService }

var errBroken = errors.New("tier down")

func (brokenCache) Get(context.Context, string) (*models.ParseResult, bool, error) {
	return nil, false, errBroken
}

func (brokenCache) GetStats(context.Context) (*CacheStats, error) { return nil, errBroken }

func TestHybridCacheService(t *testing.T) {
	ctx := context.Background()
	l1, err := NewCacheService(10, time.Hour, "v1")
	require.NoError(t, err)
	l2, err := NewCacheService(10, time.Hour, "v1")
	require.NoError(t, err)
	h := NewHybridCacheService(zaptest.NewLogger(t), l1, l2)

	require.NoError(t, l2.Set(ctx, "k", cachedResult("7")))
	got, found, err := h.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "7", got.ID)

	ok, _ := l1.Exists(ctx, "k")
	assert.True(t, ok, "hit in a lower tier is promoted")

	require.NoError(t, h.Set(ctx, "both", cachedResult("8")))
	ok1, _ := l1.Exists(ctx, "both")
	ok2, _ := l2.Exists(ctx, "both")
	assert.True(t, ok1 && ok2)

	stats, err := h.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalItems)

	require.NoError(t, h.Clear(ctx))
	assert.Equal(t, 0, l1.Size())
	assert.Equal(t, 0, l2.Size())
}

func TestHybridCacheServiceSkipsFailingTier(t *testing.T) {
	ctx := context.Background()
	healthy, err := NewCacheService(10, time.Hour, "v1")
	require.NoError(t, err)
	broken := brokenCache{healthy}
	h := NewHybridCacheService(zaptest.NewLogger(t), broken, healthy)

	require.NoError(t, healthy.Set(ctx, "k", cachedResult("1")))
	_, found, err := h.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = h.Get(ctx, "missing")
	assert.ErrorIs(t, err, errBroken)
	assert.False(t, found)

	only := NewHybridCacheService(zaptest.NewLogger(t), broken)
	_, err = only.GetStats(ctx)
	assert.ErrorIs(t, err, errBroken)
}

func TestMongoCacheService(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".address_cache", mtest.FirstBatch))
		mcs := NewMongoCacheService(mt.DB, "v1", 0, zaptest.NewLogger(t))
		_, found, err := mcs.Get(context.Background(), "sha256:aa")
		require.NoError(t, err)
		assert.False(t, found)
	})

	mt.Run("stale rules version is a miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, mt.DB.Name()+".address_cache", mtest.FirstBatch, bson.D{
			{Key: "fingerprint", Value: "sha256:aa"},
			{Key: "rules_version", Value: "v0"},
			{Key: "created_at", Value: time.Now()},
		}))
		mcs := NewMongoCacheService(mt.DB, "v1", 0, zaptest.NewLogger(t))
		_, found, err := mcs.Get(context.Background(), "sha256:aa")
		require.NoError(t, err)
		assert.False(t, found)
	})

	mt.Run("set", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		mcs := NewMongoCacheService(mt.DB, "v1", 0, zaptest.NewLogger(t))
		require.NoError(t, mcs.Set(context.Background(), "sha256:aa", cachedResult("1")))
	})

	mt.Run("invalidate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))
		mcs := NewMongoCacheService(mt.DB, "v1", 0, zaptest.NewLogger(t))
		require.NoError(t, mcs.InvalidateByRulesVersion(context.Background(), "v1"))
	})
}

func TestRedisCacheServiceUnavailable(t *testing.T) {
	_, err := NewRedisCacheService("not a url", time.Minute, zaptest.NewLogger(t))
	require.Error(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	rcs := NewRedisCacheServiceFromClient(client, time.Minute, zaptest.NewLogger(t))
	defer rcs.Close()

	ctx := context.Background()
	_, found, err := rcs.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, rcs.Set(ctx, "k", cachedResult("1")))

	// a failing tier is skipped on read
	l1, err := NewCacheService(10, time.Hour, "v1")
	require.NoError(t, err)
	require.NoError(t, l1.Set(ctx, "k", cachedResult("1")))
	hybrid := NewHybridCacheService(zaptest.NewLogger(t), rcs, l1)
	got, found, err := hybrid.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", got.ID)
}
