package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"ingredient-detector/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// readyTimeout 就緒檢查的目錄連線逾時
const readyTimeout = 2 * time.Second

// Pinger 可檢查連線的依賴
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Providers []string               `json:"providers"`
	Runtime   map[string]interface{} `json:"runtime"`
}

// Handler 健康檢查處理器
type Handler struct {
	version   string
	catalog   Pinger
	providers func() []string
}

// NewHandler 創建健康檢查處理器
func NewHandler(version string, catalog Pinger, providers func() []string) *Handler {
	if providers == nil {
		providers = func() []string { return []string{} }
	}
	return &Handler{version: version, catalog: catalog, providers: providers}
}

// HealthCheck 健康檢查
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Providers: h.providers(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	})
}

// ReadinessCheck 目錄可連線且至少有一個供應商設定金鑰時才就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if h.catalog != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := h.catalog.Ping(ctx); err != nil {
			common.LogWarn("目錄連線檢查失敗", zap.Error(err))
			checks["catalog"] = "unavailable"
			ready = false
		} else {
			checks["catalog"] = "ok"
		}
	}

	if len(h.providers()) == 0 {
		checks["providers"] = "none configured"
		ready = false
	} else {
		checks["providers"] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// LivenessCheck 存活檢查
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
