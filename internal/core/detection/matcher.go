package detection

import (
	"context"
	"math"
	"time"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// 名稱比對分數
const (
	scoreExact          = 1.0
	scoreLocalContains  = 0.85
	scoreForeignContain = 0.75

	categoryBonus   = 1.10
	categoryPenalty = 0.95

	substringNameWeight  = 0.7
	substringModelWeight = 0.3
)

// MatcherConfig 比對參數
type MatcherConfig struct {
	ChunkSize            int
	ChunkConcurrency     int
	MinSimilarity        float64
	AcceptanceThreshold  float64
	TrigramMinSimilarity float64
	TrigramLimit         int
}

// MatcherConfigFrom 由設定轉換
func MatcherConfigFrom(cfg config.DetectionConfig) MatcherConfig {
	return MatcherConfig{
		ChunkSize:            cfg.ChunkSize,
		ChunkConcurrency:     cfg.ChunkConcurrency,
		MinSimilarity:        cfg.MinSimilarity,
		AcceptanceThreshold:  cfg.AcceptanceThreshold,
		TrigramMinSimilarity: cfg.TrigramMinSimilarity,
		TrigramLimit:         3,
	}
}

// DefaultMatcherConfig 預設比對參數
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		ChunkSize:            5,
		ChunkConcurrency:     4,
		MinSimilarity:        0.5,
		AcceptanceThreshold:  0.75,
		TrigramMinSimilarity: 0.5,
		TrigramLimit:         3,
	}
}

// SubstringMatcher 分塊子字串查詢後在記憶體中評分
type SubstringMatcher struct {
	searcher catalog.Searcher
	cfg      MatcherConfig
}

// NewSubstringMatcher 創建子字串比對器
func NewSubstringMatcher(searcher catalog.Searcher, cfg MatcherConfig) *SubstringMatcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5
	}
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = 1
	}
	return &SubstringMatcher{searcher: searcher, cfg: cfg}
}

// Name 策略名稱
func (m *SubstringMatcher) Name() string { return config.StrategySubstring }

// Match 分塊查詢目錄；單一分塊失敗只記錄並略過
func (m *SubstringMatcher) Match(ctx context.Context, candidates []vision.Candidate, floor float64) ([]MatchedIngredient, error) {
	valid := eligible(candidates, floor)
	if len(valid) == 0 {
		return []MatchedIngredient{}, nil
	}

	chunks := chunkCandidates(valid, m.cfg.ChunkSize)
	results := make([][]catalog.Entry, len(chunks))

	p := pool.New().WithMaxGoroutines(max(1, min(m.cfg.ChunkConcurrency, len(chunks))))
	for i, chunk := range chunks {
		p.Go(func() {
			results[i] = m.queryChunk(ctx, i, chunk)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := dedupeEntries(results)
	common.LogDebug("目錄分塊查詢完成",
		zap.Int("候選數量", len(valid)),
		zap.Int("分塊數量", len(chunks)),
		zap.Int("目錄命中", len(entries)),
	)

	matched := make([]MatchedIngredient, 0, len(valid))
	for _, c := range valid {
		entry, score, ok := bestMatch(c, entries, m.cfg.MinSimilarity)
		if !ok {
			continue
		}
		confidence := math.Min(1, score*substringNameWeight+c.Confidence*substringModelWeight)
		if confidence < m.cfg.AcceptanceThreshold {
			continue
		}
		matched = append(matched, newMatchedIngredient(entry, confidence))
	}
	return matched, nil
}

// queryChunk 查詢單一分塊，失敗時回傳 nil
func (m *SubstringMatcher) queryChunk(ctx context.Context, index int, chunk []vision.Candidate) []catalog.Entry {
	terms := make([]string, 0, len(chunk)*2)
	for _, c := range chunk {
		terms = append(terms, c.NameLocal, c.NameForeign)
	}
	terms = common.FoldAll(terms)
	if len(terms) == 0 {
		return nil
	}

	start := time.Now()
	entries, err := m.searcher.SearchByTerms(ctx, terms)
	metrics.RecordChunkQuery(time.Since(start), err)
	if err != nil {
		common.LogWarn("目錄分塊查詢失敗，略過此分塊",
			zap.Int("分塊", index),
			zap.Strings("terms", terms),
			zap.Error(err),
		)
		return nil
	}
	return entries
}

func chunkCandidates(candidates []vision.Candidate, size int) [][]vision.Candidate {
	var out [][]vision.Candidate
	for start := 0; start < len(candidates); start += size {
		end := min(start+size, len(candidates))
		out = append(out, candidates[start:end])
	}
	return out
}

// dedupeEntries 依分塊順序合併並以 ID 去重，保留第一次出現的項目
func dedupeEntries(results [][]catalog.Entry) []catalog.Entry {
	seen := make(map[string]struct{})
	var out []catalog.Entry
	for _, chunk := range results {
		for _, e := range chunk {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// bestMatch 分數最高且不低於 minSimilarity 的項目；同分時保留先出現者
func bestMatch(c vision.Candidate, entries []catalog.Entry, minSimilarity float64) (catalog.Entry, float64, bool) {
	local := common.Fold(c.NameLocal)
	foreign := common.Fold(c.NameForeign)

	var best catalog.Entry
	bestScore := 0.0
	found := false
	for _, e := range entries {
		score := nameScore(local, foreign, common.Fold(e.Name))
		score = applyCategory(score, c.Category, e.Category)
		if score > bestScore && score >= minSimilarity {
			best, bestScore, found = e, score, true
		}
	}
	return best, bestScore, found
}

// nameScore 標準名稱與候選名稱的比對分數
func nameScore(local, foreign, name string) float64 {
	switch {
	case name == "":
		return 0
	case name == local || name == foreign:
		return scoreExact
	case local != "" && common.ContainsEither(name, local):
		return scoreLocalContains
	case foreign != "" && common.ContainsEither(name, foreign):
		return scoreForeignContain
	default:
		return 0
	}
}

// applyCategory 雙方都有分類時才調整
func applyCategory(score float64, candidate, entry common.Category) float64 {
	if candidate == common.CategoryUnassigned || entry == common.CategoryUnassigned {
		return score
	}
	if candidate == entry {
		return score * categoryBonus
	}
	return score * categoryPenalty
}
