package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-formatter/app/models"
	"go.uber.org/zap"
)

// HybridCacheService read-through cache over ordered tiers, fastest first.
// A hit in a lower tier is copied into the tiers above it.
type HybridCacheService struct {
	tiers  []ICacheService
	logger *zap.Logger
}

// NewHybridCacheService combines tiers
func NewHybridCacheService(logger *zap.Logger, tiers ...ICacheService) *HybridCacheService {
	return &HybridCacheService{tiers: tiers, logger: logger}
}

func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.ParseResult, bool, error) {
	var lastErr error
	for i, tier := range hcs.tiers {
		result, found, err := tier.Get(ctx, key)
		if err != nil {
			hcs.logger.Warn("Cache tier failed, trying next", zap.Int("tier", i), zap.Error(err))
			lastErr = err
			continue
		}
		if !found {
			continue
		}
		for j := 0; j < i; j++ {
			if err := hcs.tiers[j].Set(ctx, key, result); err != nil {
				hcs.logger.Warn("Cannot promote cache entry", zap.Int("tier", j), zap.Error(err))
			}
		}
		return result, true, nil
	}
	return nil, false, lastErr
}

func (hcs *HybridCacheService) Set(ctx context.Context, key string, result *models.ParseResult) error {
	return hcs.each(func(c ICacheService) error { return c.Set(ctx, key, result) })
}

func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return hcs.each(func(c ICacheService) error { return c.Delete(ctx, key) })
}

func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	if err := hcs.each(func(c ICacheService) error { return c.Clear(ctx) }); err != nil {
		return err
	}
	hcs.logger.Info("Cleared all cache tiers", zap.Int("tiers", len(hcs.tiers)))
	return nil
}

func (hcs *HybridCacheService) InvalidateByRulesVersion(ctx context.Context, rulesVersion string) error {
	return hcs.each(func(c ICacheService) error { return c.InvalidateByRulesVersion(ctx, rulesVersion) })
}

// GetStats sums hits and misses over the tiers; items come from the last tier
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var hits, misses, items int64
	var errs []error
	for _, tier := range hcs.tiers {
		stats, err := tier.GetStats(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hits += stats.TotalHits
		misses += stats.TotalMiss
		items = stats.TotalItems
	}
	if len(errs) == len(hcs.tiers) && len(errs) > 0 {
		return nil, fmt.Errorf("all cache tiers failed: %w", errors.Join(errs...))
	}
	return newCacheStats(hits, misses, items), nil
}

func (hcs *HybridCacheService) Exists(ctx context.Context, key string) (bool, error) {
	var lastErr error
	for _, tier := range hcs.tiers {
		ok, err := tier.Exists(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, lastErr
}

// GetTTL first tier that knows the key
func (hcs *HybridCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	for _, tier := range hcs.tiers {
		if ttl, err := tier.GetTTL(ctx, key); err == nil && ttl > 0 {
			return ttl, nil
		}
	}
	return 0, nil
}

func (hcs *HybridCacheService) Close() error {
	return hcs.each(func(c ICacheService) error { return c.Close() })
}

// each runs fn on every tier concurrently and joins the errors
func (hcs *HybridCacheService) each(fn func(ICacheService) error) error {
	errCh := make(chan error, len(hcs.tiers))
	for _, tier := range hcs.tiers {
		go func(c ICacheService) {
			errCh <- fn(c)
		}(tier)
	}

	var errs []error
	for range hcs.tiers {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
