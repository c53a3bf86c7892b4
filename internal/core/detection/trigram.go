package detection

import (
	"context"
	"errors"
	"math"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	"go.uber.org/zap"
)

const (
	trigramNameWeight  = 0.8
	trigramModelWeight = 0.2
)

// TrigramMatcher 以資料庫的 trigram 相似度一次查詢所有候選
type TrigramMatcher struct {
	searcher catalog.SimilaritySearcher
	min      float64
	limit    int
}

// NewTrigramMatcher 創建 trigram 比對器
func NewTrigramMatcher(searcher catalog.SimilaritySearcher, cfg MatcherConfig) *TrigramMatcher {
	limit := cfg.TrigramLimit
	if limit <= 0 {
		limit = 3
	}
	return &TrigramMatcher{searcher: searcher, min: cfg.TrigramMinSimilarity, limit: limit}
}

// Name 策略名稱
func (m *TrigramMatcher) Name() string { return config.StrategyTrigram }

// Match 每個候選取相似度最高的目錄項目
func (m *TrigramMatcher) Match(ctx context.Context, candidates []vision.Candidate, floor float64) ([]MatchedIngredient, error) {
	valid := eligible(candidates, floor)
	if len(valid) == 0 {
		return []MatchedIngredient{}, nil
	}

	terms := make([]string, len(valid))
	for i, c := range valid {
		terms[i] = c.NameLocal
	}

	groups, err := m.searcher.SearchSimilar(ctx, terms, m.min, m.limit)
	if err != nil {
		return nil, err
	}

	matched := make([]MatchedIngredient, 0, len(valid))
	for i, c := range valid {
		rows := groups[i]
		if len(rows) == 0 || rows[0].Similarity < m.min {
			continue
		}
		best := rows[0]
		confidence := math.Min(1, best.Similarity*trigramNameWeight+c.Confidence*trigramModelWeight)
		matched = append(matched, newMatchedIngredient(best.Entry, confidence))
	}
	return matched, nil
}

// FallbackMatcher 主要策略失敗時改用備援策略
type FallbackMatcher struct {
	primary  Matcher
	fallback Matcher
}

// NewFallbackMatcher 創建具備援的比對器
func NewFallbackMatcher(primary, fallback Matcher) *FallbackMatcher {
	return &FallbackMatcher{primary: primary, fallback: fallback}
}

// Name 主要策略名稱
func (m *FallbackMatcher) Name() string { return m.primary.Name() }

// Match 主要策略失敗且請求未取消時改用備援
func (m *FallbackMatcher) Match(ctx context.Context, candidates []vision.Candidate, floor float64) ([]MatchedIngredient, error) {
	matched, err := m.primary.Match(ctx, candidates, floor)
	if err == nil {
		return matched, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if errors.Is(err, catalog.ErrSimilarityUnsupported) {
		common.LogDebug("資料庫不支援相似度查詢，改用備援策略", zap.String("fallback", m.fallback.Name()))
	} else {
		common.LogWarn("比對策略失敗，改用備援策略",
			zap.String("primary", m.primary.Name()),
			zap.String("fallback", m.fallback.Name()),
			zap.Error(err),
		)
	}
	metrics.RecordMatcherFallback(m.primary.Name(), m.fallback.Name())
	return m.fallback.Match(ctx, candidates, floor)
}

// NewMatcher 依設定的策略建立比對器；trigram 策略以子字串比對作為備援
func NewMatcher(strategy string, store catalog.Reader, cfg MatcherConfig) Matcher {
	substring := NewSubstringMatcher(store, cfg)
	if strategy == config.StrategyTrigram {
		return NewFallbackMatcher(NewTrigramMatcher(store, cfg), substring)
	}
	return substring
}
