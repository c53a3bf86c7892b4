package detection

import (
	"context"
	"time"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	"go.uber.org/zap"
)

// 預設參數
const (
	DefaultMaxResults          = 8
	DefaultConfidenceThreshold = 0.8
)

// Service 食材辨識流程：視覺辨識、目錄比對、整理結果
type Service struct {
	registry *vision.Registry
	matcher  Matcher
	curator  Curator
	defaults Options
}

// NewService 創建辨識服務
func NewService(registry *vision.Registry, matcher Matcher, cfg config.DetectionConfig) *Service {
	defaults := Options{
		MaxResults:          cfg.MaxResults,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}
	if defaults.MaxResults <= 0 {
		defaults.MaxResults = DefaultMaxResults
	}
	if defaults.ConfidenceThreshold <= 0 {
		defaults.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Service{
		registry: registry,
		matcher:  matcher,
		curator:  NewCurator(cfg.ResultThreshold),
		defaults: defaults,
	}
}

// NewServiceFromConfig 依設定的比對策略建立辨識服務
func NewServiceFromConfig(cfg config.DetectionConfig, registry *vision.Registry, store catalog.Reader) *Service {
	return NewService(registry, NewMatcher(cfg.Strategy, store, MatcherConfigFrom(cfg)), cfg)
}

// AvailableProviders 已設定金鑰的供應商
func (s *Service) AvailableProviders() []vision.Provider {
	return s.registry.Available()
}

// DefaultProvider 未指定時使用的供應商
func (s *Service) DefaultProvider() (vision.Provider, bool) {
	return s.registry.Default()
}

// resolveOptions 以預設值補齊
func (s *Service) resolveOptions(opts Options) Options {
	if opts.MaxResults <= 0 {
		opts.MaxResults = s.defaults.MaxResults
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = s.defaults.ConfidenceThreshold
	}
	return opts
}

// DetectIngredients 辨識圖片中的食材並對應到目錄
func (s *Service) DetectIngredients(ctx context.Context, image []byte, opts Options) (*Result, error) {
	start := time.Now()
	opts = s.resolveOptions(opts)

	result, err := s.detect(ctx, image, opts)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordDetection("error", 0, duration)
		common.LogWarn("食材辨識失敗",
			zap.String("provider", string(opts.Provider)),
			zap.String("code", common.ErrorCode(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := "success"
	if len(result.DetectedIngredients) == 0 {
		outcome = "empty"
	}
	metrics.RecordDetection(outcome, len(result.DetectedIngredients), duration)
	common.LogInfo("食材辨識完成",
		zap.Int("數量", len(result.DetectedIngredients)),
		zap.Duration("duration", duration),
	)
	return result, nil
}

func (s *Service) detect(ctx context.Context, image []byte, opts Options) (*Result, error) {
	if len(image) == 0 {
		return nil, common.NewInputError("image is empty", nil)
	}

	recognizer, err := s.registry.Resolve(opts.Provider)
	if err != nil {
		return nil, err
	}
	if !recognizer.Configured() {
		return nil, common.NewConfigurationError("no API key configured for provider "+string(recognizer.Provider()), nil)
	}

	candidates, err := recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}
	common.LogDebug("視覺模型回傳候選",
		zap.String("provider", string(recognizer.Provider())),
		zap.Int("候選數量", len(candidates)),
	)
	if len(candidates) == 0 {
		return &Result{DetectedIngredients: []MatchedIngredient{}}, nil
	}

	matched, err := s.matcher.Match(ctx, candidates, opts.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}

	curated := s.curator.Curate(matched)
	if len(curated) > opts.MaxResults {
		curated = curated[:opts.MaxResults]
	}
	return &Result{DetectedIngredients: curated}, nil
}
