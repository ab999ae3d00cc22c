package routes

import (
	"github.com/address-formatter/app/controllers"
	"github.com/gin-gonic/gin"
)

// SetupWebRoutes registers the service index
func SetupWebRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Legacy Address Formatter",
			"version": controllers.ServiceVersion,
			"docs":    "/docs",
		})
	})

	router.GET("/docs", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"api": "Address Formatter API v1",
			"endpoints": map[string]string{
				"parse":            "POST /v1/addresses/parse",
				"batch":            "POST /v1/addresses/jobs",
				"job_status":       "GET /v1/addresses/jobs/:jobID/status",
				"job_results":      "GET /v1/addresses/jobs/:jobID/results",
				"stats":            "GET /v1/admin/stats",
				"cache_invalidate": "POST /v1/admin/cache/invalidate",
				"search":           "GET /v1/admin/search",
				"reviews":          "GET /v1/admin/reviews",
				"health":           "GET /v1/health",
			},
		})
	})
}
