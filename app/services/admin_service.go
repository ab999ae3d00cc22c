package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/search"
	"go.uber.org/zap"
)

// ErrSearchDisabled no search index configured
var ErrSearchDisabled = errors.New("search index not configured")

// ErrReviewsDisabled no review store configured
var ErrReviewsDisabled = errors.New("review queue not configured")

// AddressSearcher queries migrated addresses
type AddressSearcher interface {
	Search(ctx context.Context, query string, filter search.Filter, limit int64) ([]search.AddressDocument, error)
}

// ReviewLister lists records waiting for review
type ReviewLister interface {
	PendingReviews(ctx context.Context, limit int64) ([]models.AddressReview, error)
}

// AdminService operational endpoints: stats, cache control, search, reviews
type AdminService struct {
	addresses *AddressService
	cache     ICacheService
	searcher  AddressSearcher
	reviews   ReviewLister
	logger    *zap.Logger
}

// SystemStats service, cache and memory statistics
type SystemStats struct {
	Service     ServiceStats     `json:"service"`
	Cache       *CacheStats      `json:"cache,omitempty"`
	Uptime      string           `json:"uptime"`
	MemoryUsage map[string]int64 `json:"memory_usage"`
	Goroutines  int              `json:"goroutines"`
}

// NewAdminService creates an AdminService. cache, searcher and reviews may be nil.
func NewAdminService(addresses *AddressService, cache ICacheService, searcher AddressSearcher, reviews ReviewLister, logger *zap.Logger) *AdminService {
	return &AdminService{
		addresses: addresses,
		cache:     cache,
		searcher:  searcher,
		reviews:   reviews,
		logger:    logger,
	}
}

// GetSystemStats collects statistics
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Service: as.addresses.GetStats(),
		Uptime:  time.Since(as.addresses.GetStartTime()).Round(time.Second).String(),
		MemoryUsage: map[string]int64{
			"alloc_mb":       int64(bToMb(m.Alloc)),
			"total_alloc_mb": int64(bToMb(m.TotalAlloc)),
			"sys_mb":         int64(bToMb(m.Sys)),
			"num_gc":         int64(m.NumGC),
		},
		Goroutines: runtime.NumGoroutine(),
	}

	if as.cache != nil {
		cacheStats, err := as.cache.GetStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("error reading cache stats: %w", err)
		}
		stats.Cache = cacheStats
	}
	return stats, nil
}

// InvalidateCache drops every entry when all is set, otherwise entries built
// with rules other than the current ones
func (as *AdminService) InvalidateCache(ctx context.Context, all bool) error {
	if as.cache == nil {
		return nil
	}
	if all {
		as.logger.Info("Clearing parse cache")
		return as.cache.Clear(ctx)
	}
	version := as.addresses.RulesVersion()
	as.logger.Info("Invalidating parse cache", zap.String("rules_version", version))
	return as.cache.InvalidateByRulesVersion(ctx, version)
}

// Search queries the address index
func (as *AdminService) Search(ctx context.Context, query string, filter search.Filter, limit int64) ([]search.AddressDocument, error) {
	if as.searcher == nil {
		return nil, ErrSearchDisabled
	}
	return as.searcher.Search(ctx, query, filter, limit)
}

// PendingReviews oldest pending reviews
func (as *AdminService) PendingReviews(ctx context.Context, limit int64) ([]models.AddressReview, error) {
	if as.reviews == nil {
		return nil, ErrReviewsDisabled
	}
	return as.reviews.PendingReviews(ctx, limit)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
