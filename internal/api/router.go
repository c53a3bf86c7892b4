package api

import (
	"fmt"
	"net/http"
	"time"

	detectionHandler "ingredient-detector/internal/api/handlers/detection"
	"ingredient-detector/internal/api/handlers/health"
	"ingredient-detector/internal/api/middleware"
	"ingredient-detector/internal/core/ai/image"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Detector detectionHandler.Detector
	Catalog  health.Pinger
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Detector == nil {
		return nil, fmt.Errorf("detection service is required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	providers := func() []string {
		available := deps.Detector.AvailableProviders()
		out := make([]string, len(available))
		for i, p := range available {
			out[i] = string(p)
		}
		return out
	}
	healthHandler := health.NewHandler(cfg.App.Version, deps.Catalog, providers)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	images := image.NewProcessor(cfg.Image.MaxSizeBytes)
	handler := detectionHandler.NewHandler(deps.Detector, images, cfg.Image.MaxSizeBytes)

	api := router.Group("/api/v1")
	api.Use(middleware.BodySizeLimit(cfg.Image.MaxSizeBytes))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst))
	}
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	{
		detectionGroup := api.Group("/detection")
		detectionGroup.POST("/upload", middleware.Deduplication(cfg.DedupWindow), handler.HandleUpload)
		detectionGroup.GET("/providers", handler.HandleProviders)
	}

	router.NoRoute(func(c *gin.Context) {
		common.WriteErrorResponse(c, http.StatusNotFound, common.ErrCodeNotFound, "route not found")
	})

	common.LogInfo("Router setup completed successfully",
		zap.Strings("providers", providers()),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Image.MaxSizeBytes),
	)

	return router, nil
}
