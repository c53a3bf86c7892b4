package catalog

import (
	"context"
	"math"
	"strings"
	"testing"

	"ingredient-detector/internal/pkg/common"

	"golang.org/x/text/unicode/norm"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	seeds, err := DefaultSeeds()
	if err != nil {
		t.Fatalf("DefaultSeeds() error = %v", err)
	}
	if _, err := SeedStore(context.Background(), store, seeds); err != nil {
		t.Fatalf("SeedStore() error = %v", err)
	}
	return store
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"cà chua", "cà chua", 1},
		{"Cà Chua", "cà chua", 1},
		{"word", "words", 4.0 / 7.0},
		{"abc", "xyz", 0},
		{"", "abc", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDefaultSeedsMergeDuplicates(t *testing.T) {
	seeds, err := DefaultSeeds()
	if err != nil {
		t.Fatalf("DefaultSeeds() error = %v", err)
	}
	count := 0
	for _, e := range seeds {
		if e.Name != "Tỏi" {
			continue
		}
		count++
		if !contains(e.Aliases, "garlic") || !contains(e.Aliases, "tỏi ta") {
			t.Errorf("merged aliases = %v", e.Aliases)
		}
		if e.Category != common.CategorySeasoning {
			t.Errorf("category = %q", e.Category)
		}
	}
	if count != 1 {
		t.Errorf("Tỏi appears %d times, want 1", count)
	}
}

func TestParseSeedsRejectsEmptyName(t *testing.T) {
	if _, err := ParseSeeds(strings.NewReader(`[{"name":"  ","category":"khac"}]`)); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := ParseSeeds(strings.NewReader(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSQLiteSearchByTerms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		terms []string
		want  []string
		not   []string
	}{
		{name: "exact local name", terms: []string{"cà chua"}, want: []string{"Cà chua"}},
		{name: "upper case", terms: []string{"CÀ CHUA"}, want: []string{"Cà chua"}},
		{name: "decomposed diacritics", terms: []string{norm.NFD.String("cà chua")}, want: []string{"Cà chua"}},
		{name: "alias", terms: []string{"scallion"}, want: []string{"Hành lá"}},
		{name: "name contained in term", terms: []string{"ớt chuông đỏ"}, want: []string{"Ớt chuông", "Ớt"}},
		{name: "term contained in name", terms: []string{"thịt"}, want: []string{"Thịt bò", "Thịt lợn", "Thịt gà"}},
		{name: "alias contained in term", terms: []string{"fresh garlic cloves"}, want: []string{"Tỏi"}},
		{name: "no match", terms: []string{"durian"}, not: []string{"Cà chua"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchByTerms(ctx, tt.terms)
			if err != nil {
				t.Fatalf("SearchByTerms() error = %v", err)
			}
			gotNames := names(got)
			for _, w := range tt.want {
				if !contains(gotNames, w) {
					t.Errorf("results %v missing %q", gotNames, w)
				}
			}
			for _, n := range tt.not {
				if contains(gotNames, n) {
					t.Errorf("results %v unexpectedly contain %q", gotNames, n)
				}
			}
		})
	}
}

func TestSQLiteSearchReturnsFullEntry(t *testing.T) {
	store := newTestStore(t)
	got, err := store.SearchByTerms(context.Background(), []string{"cà chua", "tomato"})
	if err != nil {
		t.Fatalf("SearchByTerms() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %v, want only Cà chua", names(got))
	}
	e := got[0]
	if e.ID == "" || e.Category != common.CategoryVegetable || !contains(e.Aliases, "tomato") {
		t.Errorf("entry = %+v", e)
	}
	if e.ShelfLifeDays == nil || *e.ShelfLifeDays != 7 {
		t.Errorf("shelf life = %v", e.ShelfLifeDays)
	}
	if e.ImageURL != nil {
		t.Errorf("image url = %v, want nil", *e.ImageURL)
	}
}

func TestSQLiteUpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if before != 45 {
		t.Errorf("seeded count = %d, want 45", before)
	}

	url := "https://cdn.example.com/ca-chua.png"
	n, err := store.Upsert(ctx, []Entry{{Name: "Cà chua", Category: common.CategoryVegetable, Aliases: []string{"tomato", "roma tomato"}, ImageURL: &url}})
	if err != nil || n != 1 {
		t.Fatalf("Upsert() = %d, %v", n, err)
	}
	after, _ := store.Count(ctx)
	if after != before {
		t.Errorf("count after upsert = %d, want %d", after, before)
	}

	got, _ := store.SearchByTerms(ctx, []string{"roma tomato"})
	if len(got) != 1 || got[0].ImageURL == nil || *got[0].ImageURL != url {
		t.Fatalf("updated entry = %+v", got)
	}
	if got[0].ShelfLifeDays == nil || *got[0].ShelfLifeDays != 7 {
		t.Errorf("shelf life should be kept when not provided, got %v", got[0].ShelfLifeDays)
	}
}

func TestSQLiteUpsertBatches(t *testing.T) {
	store, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()

	entries := make([]Entry, 0, 120)
	for i := 0; i < 120; i++ {
		entries = append(entries, Entry{Name: "nguyên liệu " + strings.Repeat("x", i+1), Category: common.CategoryOther})
	}
	n, err := store.Upsert(context.Background(), entries)
	if err != nil || n != 120 {
		t.Fatalf("Upsert() = %d, %v", n, err)
	}
	if c, _ := store.Count(context.Background()); c != 120 {
		t.Errorf("Count() = %d, want 120", c)
	}
}

func TestSQLiteSearchSimilar(t *testing.T) {
	store := newTestStore(t)

	got, err := store.SearchSimilar(context.Background(), []string{"cà chua", "durian", "thịt bò"}, 0.5, 3)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(got[0]) == 0 || got[0][0].Name != "Cà chua" || got[0][0].Similarity != 1 {
		t.Errorf("term 0 results = %+v", got[0])
	}
	if len(got[1]) != 0 {
		t.Errorf("term 1 results = %+v, want none", got[1])
	}
	if len(got[2]) == 0 || got[2][0].Name != "Thịt bò" {
		t.Errorf("term 2 results = %+v", got[2])
	}
	for idx, list := range got {
		if len(list) > 3 {
			t.Errorf("term %d returned %d rows, want <= 3", idx, len(list))
		}
		for _, e := range list {
			if e.Similarity <= 0.5 {
				t.Errorf("term %d returned similarity %v", idx, e.Similarity)
			}
		}
	}
}

func TestBuildTermSearch(t *testing.T) {
	query, args := buildTermSearch([]string{"cà chua", "50%_off"})
	if strings.Count(query, "?") != len(args) {
		t.Errorf("placeholders = %d, args = %d", strings.Count(query, "?"), len(args))
	}
	if len(args) != 10 {
		t.Errorf("len(args) = %d, want 10", len(args))
	}
	if args[6] != `%50\%\_off%` {
		t.Errorf("escaped pattern = %v", args[6])
	}
}

func TestBuildSimilaritySearch(t *testing.T) {
	query, args := buildSimilaritySearch([]string{"a", "b", "c"}, 0.5, 3)
	if strings.Count(query, "UNION ALL") != 2 {
		t.Errorf("query = %s", query)
	}
	if strings.Count(query, "?") != len(args) {
		t.Errorf("placeholders = %d, args = %d", strings.Count(query, "?"), len(args))
	}
}
