package detection

import (
	"regexp"
	"sort"
	"unicode/utf8"
)

// DefaultResultThreshold 結果最低信心值
const DefaultResultThreshold = 0.8

var symbolOnlyName = regexp.MustCompile(`^[0-9!@#$%^&*()+=\[\]{}|\\:";'<>?,./]+$`)

// Curator 整理比對結果：排序、去重、過濾
type Curator struct {
	Threshold float64
}

// NewCurator 創建結果整理器
func NewCurator(threshold float64) Curator {
	if threshold <= 0 {
		threshold = DefaultResultThreshold
	}
	return Curator{Threshold: threshold}
}

// Curate 依信心值由高到低排序，同一食材只保留信心值最高者
func (c Curator) Curate(matches []MatchedIngredient) []MatchedIngredient {
	sorted := make([]MatchedIngredient, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]MatchedIngredient, 0, len(sorted))
	for _, m := range sorted {
		if _, ok := seen[m.IngredientID]; ok {
			continue
		}
		seen[m.IngredientID] = struct{}{}

		if m.Confidence < c.Threshold {
			continue
		}
		if utf8.RuneCountInString(m.Name) < 2 || symbolOnlyName.MatchString(m.Name) {
			continue
		}
		out = append(out, m)
	}
	return out
}
