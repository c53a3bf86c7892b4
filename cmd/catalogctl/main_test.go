package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "VISION_PROVIDER", "CATALOG_DRIVER", "DATABASE_URL", "CACHE_ENABLED"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedAndSearch(t *testing.T) {
	isolateEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db")

	out, err := execute(t, "--dsn", dsn, "seed")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "Seeded 45 ingredients") || !strings.Contains(out, "catalog now has 45") {
		t.Errorf("seed output = %q", out)
	}

	out, err = execute(t, "--dsn", dsn, "search", "tomato")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(out, "Cà chua") {
		t.Errorf("search output = %q", out)
	}

	out, err = execute(t, "--dsn", dsn, "search", "--similar", "cà chua")
	if err != nil {
		t.Fatalf("search --similar error = %v", err)
	}
	if !strings.Contains(out, "1.000") {
		t.Errorf("similar output = %q", out)
	}

	out, err = execute(t, "--dsn", dsn, "migrate")
	if err != nil || !strings.Contains(out, "45 ingredients") {
		t.Errorf("migrate = %q, %v", out, err)
	}
}

func TestSeedFromMissingFile(t *testing.T) {
	isolateEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db")
	if _, err := execute(t, "--dsn", dsn, "seed", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestProvidersCommand(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "gm-1234567890abcdef")

	out, err := execute(t, "providers")
	if err != nil {
		t.Fatalf("providers error = %v", err)
	}
	if !strings.Contains(out, "not set") || !strings.Contains(out, "gemini") {
		t.Errorf("providers output = %q", out)
	}
	if strings.Contains(out, "gm-1234567890abcdef") {
		t.Error("API key printed unmasked")
	}
}

func TestDetectValidatesInput(t *testing.T) {
	isolateEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db")

	if _, err := execute(t, "--dsn", dsn, "detect", filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing image")
	}
	if _, err := execute(t, "--dsn", dsn, "detect", "--provider", "claude", "x.jpg"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]column{textColumn("Name"), numericColumn("Score")}, [][]string{{"Tỏi", scoreCell(0.9)}, {"Gừng"}})
	if !strings.Contains(got, "Tỏi") || !strings.Contains(got, "Gừng") || !strings.Contains(got, "Score") {
		t.Errorf("renderTable() = %q", got)
	}
	if !strings.Contains(got, "0.900") {
		t.Errorf("score not formatted: %q", got)
	}
	if renderTable(nil, nil) != "" {
		t.Error("expected empty table for no columns")
	}
}

func TestCells(t *testing.T) {
	days := 7
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"score rounds to three places", scoreCell(0.98456), "0.985"},
		{"score of one", scoreCell(1), "1.000"},
		{"known shelf life", daysCell(&days), "7"},
		{"unknown shelf life", daysCell(nil), "-"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
