package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/address-formatter/app/models"
)

// CacheStats cache statistics
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

func newCacheStats(hits, misses, items int64) *CacheStats {
	stats := &CacheStats{TotalHits: hits, TotalMiss: misses, TotalItems: items}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ICacheService parse result cache keyed by Fingerprint
type ICacheService interface {
	// Get returns the cached result for key
	Get(ctx context.Context, key string) (*models.ParseResult, bool, error)

	// Set stores result under key
	Set(ctx context.Context, key string, result *models.ParseResult) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	// InvalidateByRulesVersion drops entries built with other pattern rules
	InvalidateByRulesVersion(ctx context.Context, rulesVersion string) error

	GetStats(ctx context.Context) (*CacheStats, error)

	Exists(ctx context.Context, key string) (bool, error)

	// GetTTL remaining lifetime of key, 0 when unknown or unlimited
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	Close() error
}

// Fingerprint cache key of a line block. profile identifies the parser
// configuration (rules version, options) the result depends on.
func Fingerprint(profile string, lines []string) string {
	h := sha256.New()
	h.Write([]byte(profile))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}
