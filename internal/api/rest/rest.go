package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/attestream/indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Post endpoints (public read access)
		v1.GET("/posts", handler.ListPosts)
		v1.GET("/posts/:id", handler.GetPost)

		// User endpoints (public read access)
		v1.GET("/users/:id", handler.GetUser)
		v1.GET("/users/:id/posts", handler.GetUserPosts)

		// Manual poll trigger (requires API key authentication only)
		v1.POST("/index/run", middleware.APIKeyAuth(authCfg), handler.TriggerIndexRun)
	}
}
