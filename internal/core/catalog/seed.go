package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"ingredient-detector/internal/pkg/common"

	"go.uber.org/zap"
)

//go:embed seed.json
var defaultSeed []byte

// Seed 匯入檔中的一筆食材
type Seed struct {
	Name                 string   `json:"name"`
	Category             string   `json:"category"`
	Aliases              []string `json:"aliases"`
	ImageURL             *string  `json:"imageUrl"`
	TypicalShelfLifeDays *int     `json:"typicalShelfLifeDays"`
}

// ParseSeeds 解析匯入檔
func ParseSeeds(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seeds []Seed
	if err := common.ParseJSONBytes(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	entries := make([]Entry, 0, len(seeds))
	for i, s := range seeds {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("seed %d: name is required", i)
		}
		entries = append(entries, Entry{
			Name:          name,
			Category:      common.ParseCategory(s.Category),
			Aliases:       s.Aliases,
			ImageURL:      s.ImageURL,
			ShelfLifeDays: s.TypicalShelfLifeDays,
		})
	}
	return MergeEntries(entries), nil
}

// DefaultSeeds 內建的基本越南食材
func DefaultSeeds() ([]Entry, error) {
	return ParseSeeds(strings.NewReader(string(defaultSeed)))
}

// MergeEntries 合併同名食材：別名取聯集，分類與其他欄位以第一個非空值為準，保持首次出現的順序
func MergeEntries(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))

	for _, e := range entries {
		i, ok := index[e.Name]
		if !ok {
			index[e.Name] = len(out)
			e.Aliases = append([]string(nil), e.Aliases...)
			out = append(out, e)
			continue
		}

		existing := &out[i]
		existing.Aliases = append(existing.Aliases, e.Aliases...)
		if existing.Category == common.CategoryUnassigned {
			existing.Category = e.Category
		}
		if existing.ImageURL == nil {
			existing.ImageURL = e.ImageURL
		}
		if existing.ShelfLifeDays == nil {
			existing.ShelfLifeDays = e.ShelfLifeDays
		}
	}

	for i := range out {
		out[i] = normalizeEntry(out[i])
	}
	return out
}

// SeedStore 合併後寫入目錄
func SeedStore(ctx context.Context, store Store, entries []Entry) (int, error) {
	merged := MergeEntries(entries)
	common.LogInfo("匯入食材目錄",
		zap.Int("原始筆數", len(entries)),
		zap.Int("合併後筆數", len(merged)),
	)

	n, err := store.Upsert(ctx, merged)
	if err != nil {
		return n, fmt.Errorf("seed catalog: %w", err)
	}
	return n, nil
}
