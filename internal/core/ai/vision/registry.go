package vision

import (
	"context"

	"ingredient-detector/internal/core/ai/cache"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"

	"go.uber.org/zap"
)

// Registry 供應商到辨識器的對應，啟動時建立一次後唯讀
type Registry struct {
	recognizers map[Provider]Recognizer
	primary     Provider
}

// NewRegistry 創建供應商註冊表
func NewRegistry(primary Provider, recognizers ...Recognizer) *Registry {
	m := make(map[Provider]Recognizer, len(recognizers))
	for _, r := range recognizers {
		m[r.Provider()] = r
	}
	return &Registry{recognizers: m, primary: primary}
}

// Get 取得指定供應商的辨識器
func (r *Registry) Get(p Provider) (Recognizer, bool) {
	rec, ok := r.recognizers[p]
	return rec, ok
}

// Default 已設定金鑰的預設供應商，優先使用 primary
func (r *Registry) Default() (Provider, bool) {
	if rec, ok := r.recognizers[r.primary]; ok && rec.Configured() {
		return r.primary, true
	}
	for _, p := range KnownProviders {
		if rec, ok := r.recognizers[p]; ok && rec.Configured() {
			return p, true
		}
	}
	return "", false
}

// Available 已設定金鑰的供應商
func (r *Registry) Available() []Provider {
	out := make([]Provider, 0, len(r.recognizers))
	for _, p := range KnownProviders {
		if rec, ok := r.recognizers[p]; ok && rec.Configured() {
			out = append(out, p)
		}
	}
	return out
}

// Resolve 決定實際使用的供應商；空值代表預設
func (r *Registry) Resolve(p Provider) (Recognizer, error) {
	if p == "" {
		def, ok := r.Default()
		if !ok {
			return nil, common.NewConfigurationError("no vision provider configured", nil)
		}
		p = def
	}
	rec, ok := r.recognizers[p]
	if !ok {
		return nil, common.NewInputError("unknown vision provider: "+string(p), nil)
	}
	return rec, nil
}

// Recognize 以指定供應商辨識圖片
func (r *Registry) Recognize(ctx context.Context, image []byte, p Provider) ([]Candidate, error) {
	rec, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	return rec.Recognize(ctx, image)
}

// NewRegistryFromConfig 依設定建立所有供應商的辨識器：客戶端、熔斷器、快取由內而外
func NewRegistryFromConfig(cfg *config.Config, store cache.Store) *Registry {
	schema := DefaultSchema()
	providers := map[Provider]config.ProviderConfig{
		ProviderOpenAI: cfg.Providers.OpenAI,
		ProviderGemini: cfg.Providers.Gemini,
	}

	recognizers := make([]Recognizer, 0, len(KnownProviders))
	for _, p := range KnownProviders {
		var rec Recognizer = NewClient(p, providers[p], schema)
		if cfg.Breaker.Enabled {
			rec = WithBreaker(rec, cfg.Breaker)
		}
		rec = WithCache(rec, store)
		recognizers = append(recognizers, rec)

		common.LogInfo("註冊視覺模型供應商",
			zap.String("provider", string(p)),
			zap.String("model", rec.Model()),
			zap.Bool("configured", rec.Configured()),
			zap.String("api_key", config.MaskAPIKey(providers[p].APIKey)),
		)
	}

	primary, err := ParseProvider(cfg.Providers.Primary)
	if err != nil || primary == "" {
		primary = ProviderOpenAI
	}
	return NewRegistry(primary, recognizers...)
}
