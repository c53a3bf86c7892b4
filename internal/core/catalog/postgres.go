package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ingredient-detector/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS ingredients (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT,
	aliases JSONB NOT NULL DEFAULT '[]'::jsonb,
	image_url TEXT,
	typical_shelf_life_days INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore 以 PostgreSQL 儲存的食材目錄，trigram 查詢使用 pg_trgm
type PostgresStore struct {
	db      *gorm.DB
	trigram bool
}

// pgRow gorm 掃描目標
type pgRow struct {
	ID                   string
	Name                 string
	Category             *string
	Aliases              string
	ImageURL             *string
	TypicalShelfLifeDays *int
	SimScore             float64
	ItemIndex            int
}

func (r pgRow) entry() (Entry, error) {
	e := Entry{
		ID:            r.ID,
		Name:          r.Name,
		Aliases:       []string{},
		ImageURL:      r.ImageURL,
		ShelfLifeDays: r.TypicalShelfLifeDays,
	}
	if r.Category != nil {
		e.Category = common.ParseCategory(*r.Category)
	}
	if r.Aliases != "" {
		if err := common.ParseJSON(r.Aliases, &e.Aliases); err != nil {
			return Entry{}, fmt.Errorf("decode aliases for %s: %w", r.Name, err)
		}
		if e.Aliases == nil {
			e.Aliases = []string{}
		}
	}
	return e, nil
}

// OpenPostgres 連線到 PostgreSQL 並建立資料表
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Migrate 建立 pg_trgm 擴充與資料表；擴充無法建立時停用 trigram 查詢
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		common.LogWarn("無法建立 pg_trgm 擴充，停用相似度查詢", zap.Error(err))
	}
	if err := db.Exec(postgresSchema).Error; err != nil {
		return fmt.Errorf("create ingredients table: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_ingredients_category ON ingredients (category)").Error; err != nil {
		return fmt.Errorf("create category index: %w", err)
	}

	var enabled bool
	if err := db.Raw("SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'pg_trgm')").Scan(&enabled).Error; err != nil {
		return fmt.Errorf("check pg_trgm: %w", err)
	}
	s.trigram = enabled
	if enabled {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_ingredients_name_trgm ON ingredients USING gin (name gin_trgm_ops)").Error; err != nil {
			return fmt.Errorf("create trigram index: %w", err)
		}
	}
	return nil
}

// buildTermSearch 產生子字串查詢；每個詞五個參數
func buildTermSearch(terms []string) (string, []any) {
	conds := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*5)
	for _, t := range terms {
		conds = append(conds, `(LOWER(name) = ?
			OR name ILIKE ? ESCAPE '\'
			OR strpos(?, LOWER(name)) > 0
			OR aliases::text ILIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(aliases) AS a(v) WHERE strpos(?, LOWER(a.v)) > 0 AND a.v <> ''))`)
		pattern := "%" + escapeLike(t) + "%"
		args = append(args, t, pattern, t, pattern, t)
	}
	query := `SELECT id::text AS id, name, category, aliases::text AS aliases, image_url, typical_shelf_life_days
		FROM ingredients WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY name`
	return query, args
}

// buildSimilaritySearch 每個詞一段子查詢，以 UNION ALL 合併
func buildSimilaritySearch(terms []string, min float64, limit int) (string, []any) {
	parts := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*5)
	for i, t := range terms {
		parts = append(parts, `(SELECT id::text AS id, name, category, aliases::text AS aliases, image_url, typical_shelf_life_days,
				similarity(name, ?) AS sim_score, ?::int AS item_index
			FROM ingredients WHERE similarity(name, ?) > ? ORDER BY sim_score DESC, name LIMIT ?)`)
		args = append(args, t, i, t, min, limit)
	}
	return strings.Join(parts, " UNION ALL "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchByTerms 名稱或別名與任一詞互相包含
func (s *PostgresStore) SearchByTerms(ctx context.Context, terms []string) ([]Entry, error) {
	terms = common.FoldAll(terms)
	if len(terms) == 0 {
		return []Entry{}, nil
	}

	query, args := buildTermSearch(terms)
	var rows []pgRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search ingredients: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// SearchSimilar pg_trgm 相似度查詢
func (s *PostgresStore) SearchSimilar(ctx context.Context, terms []string, min float64, limit int) (map[int][]ScoredEntry, error) {
	if !s.trigram {
		return nil, ErrSimilarityUnsupported
	}
	out := make(map[int][]ScoredEntry)
	if len(terms) == 0 {
		return out, nil
	}

	query, args := buildSimilaritySearch(terms, min, limit)
	var rows []pgRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out[r.ItemIndex] = append(out[r.ItemIndex], ScoredEntry{Entry: e, Similarity: r.SimScore})
	}
	for idx := range out {
		sort.SliceStable(out[idx], func(i, j int) bool {
			return out[idx][i].Similarity > out[idx][j].Similarity
		})
	}
	return out, nil
}

// Upsert 依名稱新增或更新，每批 UpsertBatchSize 筆
func (s *PostgresStore) Upsert(ctx context.Context, entries []Entry) (int, error) {
	entries = prepareUpsert(entries)
	if len(entries) == 0 {
		return 0, nil
	}

	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, batch := range batches(entries, UpsertBatchSize) {
			values := make([]string, 0, len(batch))
			args := make([]any, 0, len(batch)*6)
			for _, e := range batch {
				aliases, err := common.MarshalJSON(e.Aliases)
				if err != nil {
					return fmt.Errorf("marshal aliases: %w", err)
				}
				values = append(values, "(?::uuid, ?, ?, ?::jsonb, ?, ?)")
				args = append(args, e.ID, e.Name, nullableCategory(e.Category), string(aliases), e.ImageURL, e.ShelfLifeDays)
			}

			query := `INSERT INTO ingredients (id, name, category, aliases, image_url, typical_shelf_life_days)
				VALUES ` + strings.Join(values, ", ") + `
				ON CONFLICT (name) DO UPDATE SET
					category = EXCLUDED.category,
					aliases = EXCLUDED.aliases,
					image_url = COALESCE(EXCLUDED.image_url, ingredients.image_url),
					typical_shelf_life_days = COALESCE(EXCLUDED.typical_shelf_life_days, ingredients.typical_shelf_life_days),
					updated_at = now()`
			if err := tx.Exec(query, args...).Error; err != nil {
				return fmt.Errorf("upsert ingredients: %w", err)
			}
			written += len(batch)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Count 目錄筆數
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Raw("SELECT COUNT(1) FROM ingredients").Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("count ingredients: %w", err)
	}
	return int(n), nil
}

// Ping 檢查連線
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 關閉連線池
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
