package common

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Fold 正規化食材名稱：NFC 組合、去除多餘空白、越南語小寫。
// 視覺模型可能回傳分解形式的變音符號，比對前必須先轉成 NFC。
func Fold(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = norm.NFC.String(s)
	return cases.Lower(language.Vietnamese).String(s)
}

// FoldAll 正規化並去重，保持首次出現的順序
func FoldAll(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		f := Fold(v)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ContainsEither 任一方包含另一方
func ContainsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
