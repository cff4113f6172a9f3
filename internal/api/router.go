package api

import (
	"github.com/gin-gonic/gin"

	"github.com/clipforge/medialib/internal/api/handler"
	"github.com/clipforge/medialib/internal/api/middleware"
	"github.com/clipforge/medialib/internal/config"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(library *service.Library, log *logger.Logger, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	searchHandler := handler.NewSearchHandler(library)
	assetHandler := handler.NewAssetHandler(library)
	adminHandler := handler.NewAdminHandler(library)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Search
		v1.POST("/search/images", searchHandler.SearchImages)
		v1.POST("/search/videos", searchHandler.SearchVideos)

		// Assets
		v1.GET("/assets/:kind/:id", assetHandler.GetAsset)
		v1.POST("/assets/mark-used", assetHandler.MarkUsed)

		// Maintenance
		v1.GET("/stats", adminHandler.Stats)
		v1.POST("/ingest", adminHandler.Ingest)
		v1.POST("/gc", adminHandler.GarbageCollect)
		v1.GET("/gc/runs", adminHandler.GCRuns)
	}

	return r
}
