package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/address-formatter/app/requests"
	"github.com/address-formatter/app/responses"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/internal/search"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// AdminController handles operational requests
type AdminController struct {
	adminService *services.AdminService
	environment  string
	logger       *zap.Logger
}

// NewAdminController creates an AdminController
func NewAdminController(adminService *services.AdminService, environment string, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService: adminService,
		environment:  environment,
		logger:       logger,
	}
}

// GetStats returns service, cache and runtime statistics
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		ac.logger.Error("Failed to collect stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "STATS_ERROR",
			Message: "Failed to collect stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, responses.SystemStatsResponse{
		SystemStats: stats,
		Environment: ac.environment,
	})
}

// InvalidateCache drops cached parse results of older rules versions,
// or every entry when "all" is set
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	var req requests.InvalidateCacheRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, responses.ErrorResponse{
				Error:   "INVALID_REQUEST",
				Message: "Invalid request: " + err.Error(),
			})
			return
		}
	}
	if c.Query("all") == "true" {
		req.All = true
	}

	startTime := time.Now()
	if err := ac.adminService.InvalidateCache(c.Request.Context(), req.All); err != nil {
		ac.logger.Error("Failed to invalidate cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "INVALIDATE_ERROR",
			Message: "Failed to invalidate cache: " + err.Error(),
		})
		return
	}

	processingTime := time.Since(startTime)
	ac.logger.Info("Cache invalidated",
		zap.Bool("all", req.All),
		zap.Duration("duration", processingTime))

	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "Cache invalidated",
		Data: map[string]interface{}{
			"all":                req.All,
			"processing_time_ms": processingTime.Milliseconds(),
		},
	})
}

// Search queries the address index
func (ac *AdminController) Search(c *gin.Context) {
	query := c.Query("q")
	filter := search.Filter{
		Country:    c.Query("country"),
		PostalCode: c.Query("postal_code"),
		City:       c.Query("city"),
		Kind:       c.Query("kind"),
	}

	docs, err := ac.adminService.Search(c.Request.Context(), query, filter, listLimit(c))
	if err != nil {
		ac.respondOptional(c, err, services.ErrSearchDisabled, "SEARCH_ERROR")
		return
	}

	c.JSON(http.StatusOK, responses.SearchResponse{
		Query: query,
		Count: len(docs),
		Hits:  docs,
	})
}

// PendingReviews lists records waiting for manual review
func (ac *AdminController) PendingReviews(c *gin.Context) {
	reviews, err := ac.adminService.PendingReviews(c.Request.Context(), listLimit(c))
	if err != nil {
		ac.respondOptional(c, err, services.ErrReviewsDisabled, "REVIEWS_ERROR")
		return
	}

	c.JSON(http.StatusOK, responses.ReviewListResponse{
		Count:   len(reviews),
		Reviews: reviews,
	})
}

func (ac *AdminController) respondOptional(c *gin.Context, err, disabled error, code string) {
	if errors.Is(err, disabled) {
		c.JSON(http.StatusServiceUnavailable, responses.ErrorResponse{
			Error:   "FEATURE_DISABLED",
			Message: err.Error(),
		})
		return
	}
	ac.logger.Error("Admin request failed", zap.String("code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func listLimit(c *gin.Context) int64 {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)), 10, 64)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
