package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ingredient-detector/internal/pkg/common"

	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var registerOnce sync.Once
var registerErr error

// registerFunctions 註冊 similarity(a, b)，讓 SQLite 也能做 trigram 查詢
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("similarity", 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				a, _ := args[0].(string)
				b, _ := args[1].(string)
				return Similarity(a, b), nil
			})
	})
	return registerErr
}

// SQLiteStore 以 SQLite 儲存的食材目錄
type SQLiteStore struct {
	db *sql.DB
}

const entryColumns = "id, name, category, aliases, image_url, typical_shelf_life_days"

// OpenSQLite 開啟 SQLite 目錄並套用遷移
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// 每個連線都是獨立的記憶體資料庫
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate 依序套用尚未執行的遷移
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// SearchByTerms 名稱或別名與任一詞互相包含
func (s *SQLiteStore) SearchByTerms(ctx context.Context, terms []string) ([]Entry, error) {
	terms = common.FoldAll(terms)
	if len(terms) == 0 {
		return []Entry{}, nil
	}

	conds := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*5)
	for _, t := range terms {
		conds = append(conds, `(name_lower = ?
			OR instr(name_lower, ?) > 0
			OR instr(?, name_lower) > 0
			OR EXISTS (SELECT 1 FROM json_each(ingredients.aliases_lower) a
			           WHERE instr(a.value, ?) > 0 OR instr(?, a.value) > 0))`)
		args = append(args, t, t, t, t, t)
	}

	query := "SELECT " + entryColumns + " FROM ingredients WHERE " + strings.Join(conds, " OR ") + " ORDER BY name"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search ingredients: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredients: %w", err)
	}
	return out, nil
}

// SearchSimilar 以 UNION ALL 一次查詢所有詞的 trigram 相似度
func (s *SQLiteStore) SearchSimilar(ctx context.Context, terms []string, min float64, limit int) (map[int][]ScoredEntry, error) {
	out := make(map[int][]ScoredEntry)
	if len(terms) == 0 {
		return out, nil
	}

	parts := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*5)
	for i, t := range terms {
		parts = append(parts, `SELECT * FROM (SELECT `+entryColumns+`, similarity(name, ?) AS sim_score, ? AS item_index
			FROM ingredients WHERE similarity(name, ?) > ? ORDER BY sim_score DESC, name LIMIT ?)`)
		args = append(args, t, i, t, min, limit)
	}

	rows, err := s.db.QueryContext(ctx, strings.Join(parts, " UNION ALL "), args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row      entryRow
			sim      float64
			idx      int
			scanDest = append(row.dest(), &sim, &idx)
		)
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], ScoredEntry{Entry: e, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity rows: %w", err)
	}

	for idx := range out {
		sort.SliceStable(out[idx], func(i, j int) bool {
			return out[idx][i].Similarity > out[idx][j].Similarity
		})
	}
	return out, nil
}

// Upsert 依名稱新增或更新，每批 UpsertBatchSize 筆
func (s *SQLiteStore) Upsert(ctx context.Context, entries []Entry) (int, error) {
	entries = prepareUpsert(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for _, batch := range batches(entries, UpsertBatchSize) {
		values := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*10)
		for _, e := range batch {
			aliases, err := common.MarshalJSON(e.Aliases)
			if err != nil {
				return written, fmt.Errorf("marshal aliases: %w", err)
			}
			aliasesLower, err := common.MarshalJSON(foldedAliases(e.Aliases))
			if err != nil {
				return written, fmt.Errorf("marshal aliases: %w", err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				e.ID, e.Name, common.Fold(e.Name), nullableCategory(e.Category),
				string(aliases), string(aliasesLower),
				e.ImageURL, e.ShelfLifeDays, now, now,
			)
		}

		query := `INSERT INTO ingredients (id, name, name_lower, category, aliases, aliases_lower,
				image_url, typical_shelf_life_days, created_at, updated_at)
			VALUES ` + strings.Join(values, ", ") + `
			ON CONFLICT(name) DO UPDATE SET
				category = excluded.category,
				aliases = excluded.aliases,
				aliases_lower = excluded.aliases_lower,
				image_url = COALESCE(excluded.image_url, ingredients.image_url),
				typical_shelf_life_days = COALESCE(excluded.typical_shelf_life_days, ingredients.typical_shelf_life_days),
				updated_at = excluded.updated_at`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("upsert ingredients: %w", err)
		}
		written += len(batch)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return written, nil
}

// Count 目錄筆數
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM ingredients").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ingredients: %w", err)
	}
	return n, nil
}

// Ping 檢查連線
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// entryRow 共用的掃描目標
type entryRow struct {
	id       string
	name     string
	category sql.NullString
	aliases  sql.NullString
	imageURL sql.NullString
	shelf    sql.NullInt64
}

func (r *entryRow) dest() []any {
	return []any{&r.id, &r.name, &r.category, &r.aliases, &r.imageURL, &r.shelf}
}

func (r *entryRow) entry() (Entry, error) {
	e := Entry{
		ID:       r.id,
		Name:     r.name,
		Category: common.ParseCategory(r.category.String),
		Aliases:  []string{},
	}
	if r.aliases.Valid && r.aliases.String != "" {
		if err := common.ParseJSON(r.aliases.String, &e.Aliases); err != nil {
			return Entry{}, fmt.Errorf("decode aliases for %s: %w", r.name, err)
		}
		if e.Aliases == nil {
			e.Aliases = []string{}
		}
	}
	if r.imageURL.Valid {
		u := r.imageURL.String
		e.ImageURL = &u
	}
	if r.shelf.Valid {
		d := int(r.shelf.Int64)
		e.ShelfLifeDays = &d
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(rs rowScanner) (Entry, error) {
	var row entryRow
	if err := rs.Scan(row.dest()...); err != nil {
		return Entry{}, fmt.Errorf("scan ingredient: %w", err)
	}
	return row.entry()
}

func nullableCategory(c common.Category) any {
	if c == common.CategoryUnassigned {
		return nil
	}
	return string(c)
}
