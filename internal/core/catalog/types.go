// Package catalog 是食材目錄的唯讀查詢與維運（遷移、匯入）層。
package catalog

import (
	"context"
	"errors"
	"strings"

	"ingredient-detector/internal/pkg/common"
)

// ErrSimilarityUnsupported 儲存層不支援 trigram 相似度查詢
var ErrSimilarityUnsupported = errors.New("catalog: trigram similarity not supported")

// UpsertBatchSize 每批寫入筆數
const UpsertBatchSize = 50

// Entry 目錄中的標準食材
type Entry struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      common.Category `json:"category,omitempty"`
	Aliases       []string        `json:"aliases"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	ShelfLifeDays *int            `json:"typicalShelfLifeDays,omitempty"`
}

// ScoredEntry 相似度查詢結果
type ScoredEntry struct {
	Entry
	Similarity float64
}

// Searcher 名稱與別名的子字串查詢
type Searcher interface {
	// SearchByTerms 回傳名稱或任一別名與任一詞互相包含（不分大小寫）的所有食材，依名稱排序
	SearchByTerms(ctx context.Context, terms []string) ([]Entry, error)
}

// SimilaritySearcher trigram 相似度查詢
type SimilaritySearcher interface {
	// SearchSimilar 對每個詞回傳名稱相似度大於 min 的前 limit 筆，鍵為詞的索引
	SearchSimilar(ctx context.Context, terms []string, min float64, limit int) (map[int][]ScoredEntry, error)
}

// Reader 辨識流程使用的唯讀查詢
type Reader interface {
	Searcher
	SimilaritySearcher
}

// Store 完整的目錄儲存介面
type Store interface {
	Reader
	Migrate(ctx context.Context) error
	Upsert(ctx context.Context, entries []Entry) (int, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// normalizeEntry 清理分類與別名
func normalizeEntry(e Entry) Entry {
	e.Name = strings.TrimSpace(e.Name)
	if !e.Category.Valid() {
		e.Category = common.CategoryUnassigned
	}
	aliases := make([]string, 0, len(e.Aliases))
	seen := make(map[string]struct{}, len(e.Aliases))
	for _, a := range e.Aliases {
		f := common.Fold(a)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		aliases = append(aliases, a)
	}
	e.Aliases = aliases
	return e
}

// foldedAliases 別名的正規化形式，供子字串查詢使用
func foldedAliases(aliases []string) []string {
	return common.FoldAll(aliases)
}

// prepareUpsert 合併同名項目並補上 ID
func prepareUpsert(entries []Entry) []Entry {
	merged := MergeEntries(entries)
	for i := range merged {
		if merged[i].ID == "" {
			merged[i].ID = common.GenerateUUID()
		}
	}
	return merged
}

func batches(entries []Entry, size int) [][]Entry {
	var out [][]Entry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[start:end])
	}
	return out
}
