package routes

import (
	"github.com/formledger/formledger-backend/internal/config"
	"github.com/formledger/formledger-backend/internal/handler"
	"github.com/formledger/formledger-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	versionHandler *handler.VersionHandler,
	schemaHandler *handler.SchemaHandler,
	adminHandler *handler.AdminHandler,
	redisClient *redis.Client,
	cfg *config.Config,
) {
	api := router.Group("/api/v1")

	// Order versions
	orders := api.Group("/orders/:order_id")
	orders.POST("/versions", versionHandler.Create)
	orders.GET("/versions", versionHandler.List)
	orders.GET("/versions/latest", versionHandler.GetLatest)
	orders.GET("/versions/:version", versionHandler.GetVersion)
	orders.POST("/versions/:version/promote", versionHandler.Promote)
	orders.GET("/history", versionHandler.History)

	// Form schemas. Reads sit behind the Redis response cache; writes go
	// straight through and invalidate via the cache service.
	schemas := api.Group("/schemas")
	schemas.POST("", schemaHandler.Create)
	schemas.GET("", middleware.Cache(redisClient, middleware.DefaultCacheConfig()), schemaHandler.List)
	schemas.GET("/active", schemaHandler.GetActive)
	schemas.GET("/:form_version_id", schemaHandler.Get)
	schemas.POST("/:form_version_id/activate", schemaHandler.Activate)
	schemas.POST("/:form_version_id/deprecate", schemaHandler.Deprecate)

	// Operational endpoints
	admin := api.Group("/admin", middleware.APIKeyAuth(cfg.Admin.APIKey))
	admin.POST("/purge/run", adminHandler.RunPurge)
	admin.GET("/tasks", adminHandler.Tasks)
}
