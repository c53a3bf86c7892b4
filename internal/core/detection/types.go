// Package detection 將視覺模型的候選食材對應到食材目錄，並過濾、排序結果。
package detection

import (
	"context"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/pkg/common"

	"github.com/goccy/go-json"
)

// MatchedIngredient 對應到目錄的食材與混合信心值
type MatchedIngredient struct {
	IngredientID  string          `json:"ingredientId"`
	Name          string          `json:"name"`
	Category      common.Category `json:"category"`
	Aliases       []string        `json:"aliases"`
	ImageURL      *string         `json:"imageUrl"`
	ShelfLifeDays *int            `json:"typicalShelfLifeDays"`
	Confidence    float64         `json:"confidence"`
}

// matchedIngredientJSON 輸出格式
type matchedIngredientJSON struct {
	IngredientID  string   `json:"ingredientId"`
	Name          string   `json:"name"`
	Category      *string  `json:"category"`
	Aliases       []string `json:"aliases"`
	ImageURL      *string  `json:"imageUrl"`
	ShelfLifeDays *int     `json:"typicalShelfLifeDays"`
	Confidence    float64  `json:"confidence"`
}

// MarshalJSON 空分類輸出為 null，別名至少為空陣列
func (m MatchedIngredient) MarshalJSON() ([]byte, error) {
	aliases := m.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return json.Marshal(matchedIngredientJSON{
		IngredientID:  m.IngredientID,
		Name:          m.Name,
		Category:      m.Category.Ptr(),
		Aliases:       aliases,
		ImageURL:      m.ImageURL,
		ShelfLifeDays: m.ShelfLifeDays,
		Confidence:    m.Confidence,
	})
}

func newMatchedIngredient(e catalog.Entry, confidence float64) MatchedIngredient {
	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return MatchedIngredient{
		IngredientID:  e.ID,
		Name:          e.Name,
		Category:      e.Category,
		Aliases:       aliases,
		ImageURL:      e.ImageURL,
		ShelfLifeDays: e.ShelfLifeDays,
		Confidence:    confidence,
	}
}

// Result 辨識結果，依信心值由高到低排序
type Result struct {
	DetectedIngredients []MatchedIngredient `json:"detectedIngredients"`
}

// Options 單次辨識參數；零值代表使用預設
type Options struct {
	MaxResults          int
	ConfidenceThreshold float64
	Provider            vision.Provider
}

// Matcher 將候選食材對應到目錄
type Matcher interface {
	// Match 先過濾掉信心值低於 floor 的候選，再對應到目錄
	Match(ctx context.Context, candidates []vision.Candidate, floor float64) ([]MatchedIngredient, error)
	Name() string
}

// eligible 信心值達到 floor 的候選
func eligible(candidates []vision.Candidate, floor float64) []vision.Candidate {
	out := make([]vision.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= floor {
			out = append(out, c)
		}
	}
	return out
}
