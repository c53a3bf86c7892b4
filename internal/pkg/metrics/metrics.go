// Package metrics 定義食材辨識服務的 Prometheus 指標。
//
// 指標分類：
//   - 辨識請求：結果計數、端到端耗時
//   - 視覺模型：每個供應商的調用耗時與錯誤
//   - 食材目錄：分塊查詢耗時、失敗次數、比對策略回退
//   - 熔斷器與快取：狀態、命中與未命中
//   - HTTP：請求計數與耗時
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionRequestsTotal 依結果（success、empty、錯誤代碼）統計辨識請求
	DetectionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_requests_total",
			Help: "Total number of ingredient detection requests by outcome",
		},
		[]string{"outcome"},
	)

	// DetectionDuration 辨識流程端到端耗時
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_duration_seconds",
			Help:    "End-to-end duration of ingredient detection in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	// DetectedIngredients 每次回傳的食材數量
	DetectedIngredients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_result_size",
			Help:    "Number of ingredients returned per detection",
			Buckets: []float64{0, 1, 2, 4, 8, 12, 20},
		},
	)

	// VisionRequestDuration 視覺模型調用耗時
	VisionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vision_request_duration_seconds",
			Help:    "Duration of vision provider calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider"},
	)

	// VisionErrorsTotal 視覺模型錯誤，依供應商與錯誤代碼
	VisionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_errors_total",
			Help: "Total number of vision provider errors by provider and code",
		},
		[]string{"provider", "code"},
	)

	// CatalogChunkDuration 目錄分塊查詢耗時
	CatalogChunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_chunk_duration_seconds",
			Help:    "Duration of a single catalog chunk query in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// CatalogChunkFailuresTotal 被略過的分塊查詢
	CatalogChunkFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_chunk_failures_total",
			Help: "Total number of catalog chunk queries that failed and were skipped",
		},
	)

	// MatcherFallbacksTotal 比對策略回退次數
	MatcherFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_fallbacks_total",
			Help: "Total number of times the preferred matcher failed and the fallback was used",
		},
		[]string{"from", "to"},
	)

	// BreakerState 熔斷器狀態（0=closed, 1=half-open, 2=open）
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vision_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// CacheHitsTotal 視覺回應快取命中
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_cache_hits_total",
			Help: "Total number of vision response cache hits",
		},
		[]string{"provider"},
	)

	// CacheMissesTotal 視覺回應快取未命中
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_cache_misses_total",
			Help: "Total number of vision response cache misses",
		},
		[]string{"provider"},
	)

	// HTTPRequestsTotal HTTP 請求計數
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration HTTP 請求耗時
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordDetection 記錄一次辨識請求
func RecordDetection(outcome string, count int, d time.Duration) {
	DetectionRequestsTotal.WithLabelValues(outcome).Inc()
	DetectionDuration.Observe(d.Seconds())
	if outcome == "success" || outcome == "empty" {
		DetectedIngredients.Observe(float64(count))
	}
}

// RecordVisionCall 記錄一次視覺模型調用；code 為空代表成功
func RecordVisionCall(provider string, d time.Duration, code string) {
	VisionRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
	if code != "" {
		VisionErrorsTotal.WithLabelValues(provider, code).Inc()
	}
}

// RecordChunkQuery 記錄一次分塊查詢
func RecordChunkQuery(d time.Duration, err error) {
	CatalogChunkDuration.Observe(d.Seconds())
	if err != nil {
		CatalogChunkFailuresTotal.Inc()
	}
}

// RecordMatcherFallback 記錄比對策略回退
func RecordMatcherFallback(from, to string) {
	MatcherFallbacksTotal.WithLabelValues(from, to).Inc()
}

// SetBreakerState 設定熔斷器狀態
func SetBreakerState(provider string, state int) {
	BreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordCacheLookup 記錄快取查詢
func RecordCacheLookup(provider string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(provider).Inc()
		return
	}
	CacheMissesTotal.WithLabelValues(provider).Inc()
}

// RecordHTTPRequest 記錄 HTTP 請求
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
