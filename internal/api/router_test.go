package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/detection"
	"ingredient-detector/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
)

type stubDetector struct {
	providers []vision.Provider
}

func (s *stubDetector) DetectIngredients(context.Context, []byte, detection.Options) (*detection.Result, error) {
	return &detection.Result{DetectedIngredients: []detection.MatchedIngredient{}}, nil
}

func (s *stubDetector) AvailableProviders() []vision.Provider { return s.providers }

func (s *stubDetector) DefaultProvider() (vision.Provider, bool) {
	if len(s.providers) == 0 {
		return "", false
	}
	return s.providers[0], true
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Debug: true, Version: "test"},
		Server:      config.ServerConfig{RequestTimeout: 5 * time.Second},
		RateLimit:   config.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute, Burst: 10},
		Image:       config.ImageConfig{MaxSizeBytes: 1 << 20},
		DedupWindow: time.Second,
	}
}

func TestSetupRouterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := SetupRouter(testConfig(), Dependencies{
		Detector: &stubDetector{providers: []vision.Provider{vision.ProviderOpenAI}},
		Catalog:  stubPinger{},
	})
	if err != nil {
		t.Fatalf("SetupRouter() error = %v", err)
	}

	tests := []struct {
		path       string
		wantStatus int
		contains   string
	}{
		{"/health", http.StatusOK, `"providers":["openai"]`},
		{"/ready", http.StatusOK, `"ready"`},
		{"/live", http.StatusOK, `"alive"`},
		{"/metrics", http.StatusOK, "http_requests_total"},
		{"/api/v1/detection/providers", http.StatusOK, `"default":"openai"`},
		{"/nope", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body = %s, want substring %s", rec.Body.String(), tt.contains)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestReadinessFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		deps Dependencies
	}{
		{"catalog down", Dependencies{Detector: &stubDetector{providers: []vision.Provider{vision.ProviderOpenAI}}, Catalog: stubPinger{err: errors.New("down")}}},
		{"no providers", Dependencies{Detector: &stubDetector{}, Catalog: stubPinger{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := SetupRouter(testConfig(), tt.deps)
			if err != nil {
				t.Fatalf("SetupRouter() error = %v", err)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
		})
	}
}

func TestSetupRouterRequiresDetector(t *testing.T) {
	if _, err := SetupRouter(testConfig(), Dependencies{}); err == nil {
		t.Error("expected error without detection service")
	}
}
