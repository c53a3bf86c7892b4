package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ingredient-detector/internal/api"
	"ingredient-detector/internal/core/ai/cache"
	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/core/detection"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	if err := run(cfg); err != nil {
		common.LogError("Server exited with error", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	common.LogInfo("載入設定",
		zap.String("primary_provider", cfg.Providers.Primary),
		zap.String("openai_api_key", config.MaskAPIKey(cfg.Providers.OpenAI.APIKey)),
		zap.String("gemini_api_key", config.MaskAPIKey(cfg.Providers.Gemini.APIKey)),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("strategy", cfg.Detection.Strategy),
	)

	store, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	if n, err := store.Count(ctx); err == nil && n == 0 {
		common.LogWarn("食材目錄為空，請先執行 catalogctl seed")
	}

	// 快取預設關閉；開啟但初始化失敗時直接結束
	cacheStore, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	if cacheStore != nil {
		defer cacheStore.Close()
	}

	registry := vision.NewRegistryFromConfig(cfg, cacheStore)
	if len(registry.Available()) == 0 {
		common.LogWarn("沒有設定任何視覺模型金鑰，辨識請求將回傳 CONFIGURATION_ERROR")
	}
	detector := detection.NewServiceFromConfig(cfg.Detection, registry, store)

	router, err := api.SetupRouter(cfg, api.Dependencies{
		Detector: detector,
		Catalog:  store,
	})
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	common.LogInfo("Server exited")
	return nil
}
