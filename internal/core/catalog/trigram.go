package catalog

import (
	"unicode"

	"ingredient-detector/internal/pkg/common"
)

// Similarity 與 pg_trgm similarity() 相同的定義：
// 以非字母數字切詞，每個詞前補兩個空白、後補一個空白，取三字元組集合的 Jaccard 係數。
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

func trigrams(s string) map[string]struct{} {
	out := make(map[string]struct{})
	word := make([]rune, 0, 16)

	flush := func() {
		if len(word) == 0 {
			return
		}
		padded := make([]rune, 0, len(word)+3)
		padded = append(padded, ' ', ' ')
		padded = append(padded, word...)
		padded = append(padded, ' ')
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
		word = word[:0]
	}

	for _, r := range common.Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			word = append(word, r)
			continue
		}
		flush()
	}
	flush()
	return out
}
