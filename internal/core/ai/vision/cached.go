package vision

import (
	"context"
	"errors"

	"ingredient-detector/internal/core/ai/cache"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	"go.uber.org/zap"
)

// CachedRecognizer 以圖片內容快取模型回應。快取讀寫失敗只記錄，不影響辨識。
type CachedRecognizer struct {
	Recognizer
	store cache.Store
}

// WithCache 包裝辨識器；store 為 nil 時直接回傳原辨識器
func WithCache(next Recognizer, store cache.Store) Recognizer {
	if store == nil {
		return next
	}
	return &CachedRecognizer{Recognizer: next, store: store}
}

// Recognize 先查快取，未命中才呼叫下一層
func (c *CachedRecognizer) Recognize(ctx context.Context, image []byte) ([]Candidate, error) {
	if len(image) == 0 || !c.Configured() {
		return c.Recognizer.Recognize(ctx, image)
	}

	provider := string(c.Provider())
	key := cache.Key(provider, c.Model(), image)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var candidates []Candidate
		if err := common.ParseJSONBytes(data, &candidates); err == nil {
			metrics.RecordCacheLookup(provider, true)
			return candidates, nil
		}
		common.LogWarn("快取內容無法解析，重新呼叫模型", zap.String("provider", provider))
	case errors.Is(err, common.ErrCacheMiss):
	default:
		common.LogWarn("快取讀取失敗", zap.String("provider", provider), zap.Error(err))
	}
	metrics.RecordCacheLookup(provider, false)

	candidates, err := c.Recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}

	if data, err := common.MarshalJSON(candidates); err == nil {
		if err := c.store.Set(ctx, key, data); err != nil {
			common.LogWarn("快取寫入失敗", zap.String("provider", provider), zap.Error(err))
		}
	}
	return candidates, nil
}
