package detection

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"

	"github.com/goccy/go-json"
)

type stubRecognizer struct {
	provider   vision.Provider
	configured bool
	candidates []vision.Candidate
	err        error
	calls      int
}

func (s *stubRecognizer) Recognize(_ context.Context, _ []byte) ([]vision.Candidate, error) {
	s.calls++
	return s.candidates, s.err
}
func (s *stubRecognizer) Provider() vision.Provider { return s.provider }
func (s *stubRecognizer) Model() string             { return "stub" }
func (s *stubRecognizer) Configured() bool          { return s.configured }

func testDetectionConfig() config.DetectionConfig {
	return config.DetectionConfig{
		MaxResults:           8,
		ConfidenceThreshold:  0.8,
		AcceptanceThreshold:  0.75,
		ResultThreshold:      0.8,
		MinSimilarity:        0.5,
		TrigramMinSimilarity: 0.5,
		ChunkSize:            5,
		ChunkConcurrency:     4,
		Strategy:             config.StrategySubstring,
	}
}

func newTestService(store *fakeCatalog, recognizers ...vision.Recognizer) *Service {
	cfg := testDetectionConfig()
	registry := vision.NewRegistry(vision.ProviderOpenAI, recognizers...)
	matcher := NewMatcher(cfg.Strategy, store, MatcherConfigFrom(cfg))
	return NewService(registry, matcher, cfg)
}

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0}

func TestCuratorScenarioD(t *testing.T) {
	got := NewCurator(0.75).Curate([]MatchedIngredient{
		{IngredientID: "a", Name: "Cà chua", Confidence: 0.77},
		{IngredientID: "a", Name: "Cà chua", Confidence: 0.81},
	})
	if len(got) != 1 || got[0].Confidence != 0.81 {
		t.Errorf("Curate() = %+v, want single 0.81 entry", got)
	}
}

func TestCuratorFilters(t *testing.T) {
	tests := []struct {
		name  string
		input MatchedIngredient
		keep  bool
	}{
		{name: "valid", input: MatchedIngredient{IngredientID: "1", Name: "Tỏi", Confidence: 0.9}, keep: true},
		{name: "below threshold", input: MatchedIngredient{IngredientID: "2", Name: "Hành", Confidence: 0.79}},
		{name: "single rune", input: MatchedIngredient{IngredientID: "3", Name: "Ớ", Confidence: 0.9}},
		{name: "digits", input: MatchedIngredient{IngredientID: "4", Name: "123", Confidence: 0.9}},
		{name: "punctuation", input: MatchedIngredient{IngredientID: "5", Name: "!?.,", Confidence: 0.9}},
		{name: "mixed letters and digits", input: MatchedIngredient{IngredientID: "6", Name: "7up", Confidence: 0.9}, keep: true},
		{name: "exact threshold", input: MatchedIngredient{IngredientID: "7", Name: "Gừng", Confidence: 0.8}, keep: true},
	}
	c := NewCurator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Curate([]MatchedIngredient{tt.input})
			if (len(got) == 1) != tt.keep {
				t.Errorf("Curate() = %+v, keep = %v", got, tt.keep)
			}
		})
	}
}

func TestCuratorSortsStable(t *testing.T) {
	got := NewCurator(0.8).Curate([]MatchedIngredient{
		{IngredientID: "a", Name: "Tỏi", Confidence: 0.85},
		{IngredientID: "b", Name: "Gừng", Confidence: 0.95},
		{IngredientID: "c", Name: "Hành", Confidence: 0.85},
	})
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.IngredientID
	}
	if strings.Join(ids, ",") != "b,a,c" {
		t.Errorf("order = %v, want b,a,c", ids)
	}
}

func TestDetectIngredientsScenarioA(t *testing.T) {
	store := &fakeCatalog{entries: []catalog.Entry{tomato}}
	rec := &stubRecognizer{provider: vision.ProviderOpenAI, configured: true, candidates: []vision.Candidate{}}
	svc := newTestService(store, rec)

	got, err := svc.DetectIngredients(context.Background(), testImage, Options{})
	if err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	if got.DetectedIngredients == nil || len(got.DetectedIngredients) != 0 {
		t.Errorf("DetectedIngredients = %#v, want empty slice", got.DetectedIngredients)
	}
	if store.callCount() != 0 {
		t.Errorf("catalog queried %d times, want 0", store.callCount())
	}

	body, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(body) != `{"detectedIngredients":[]}` {
		t.Errorf("json = %s", body)
	}
}

func TestDetectIngredientsScenarioBAndC(t *testing.T) {
	store := &fakeCatalog{entries: []catalog.Entry{tomato, garlic}}
	rec := &stubRecognizer{provider: vision.ProviderOpenAI, configured: true, candidates: []vision.Candidate{
		{NameLocal: "cà chua", NameForeign: "tomato", Category: common.CategoryVegetable, Confidence: 0.92},
		{NameLocal: "tỏi", NameForeign: "garlic", Category: common.CategorySeasoning, Confidence: 0.65},
	}}
	svc := newTestService(store, rec)

	got, err := svc.DetectIngredients(context.Background(), testImage, Options{})
	if err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	if len(got.DetectedIngredients) != 1 {
		t.Fatalf("DetectedIngredients = %+v", got.DetectedIngredients)
	}
	m := got.DetectedIngredients[0]
	if m.IngredientID != tomato.ID || m.Confidence != 1.0 {
		t.Errorf("match = %+v", m)
	}
}

func TestDetectIngredientsDedupAcrossCandidates(t *testing.T) {
	store := &fakeCatalog{entries: []catalog.Entry{tomato}}
	rec := &stubRecognizer{provider: vision.ProviderOpenAI, configured: true, candidates: []vision.Candidate{
		{NameLocal: "cà chua", NameForeign: "tomato", Confidence: 0.85},
		{NameLocal: "cà chua", NameForeign: "tomato", Confidence: 0.95},
	}}
	svc := newTestService(store, rec)

	got, err := svc.DetectIngredients(context.Background(), testImage, Options{})
	if err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	if len(got.DetectedIngredients) != 1 {
		t.Fatalf("DetectedIngredients = %+v", got.DetectedIngredients)
	}
	// 1.0*0.7 + 0.95*0.3
	if !near(got.DetectedIngredients[0].Confidence, 0.985) {
		t.Errorf("confidence = %v, want 0.985", got.DetectedIngredients[0].Confidence)
	}
}

func TestDetectIngredientsInvariants(t *testing.T) {
	entries := []catalog.Entry{tomato, cherry, garlic, beef, basil,
		{ID: "id-ginger", Name: "Gừng", Aliases: []string{"ginger"}},
		{ID: "id-onion", Name: "Hành tây", Aliases: []string{"onion"}},
		{ID: "id-chili", Name: "Ớt", Aliases: []string{"chili"}},
	}
	candidates := []vision.Candidate{
		{NameLocal: "cà chua", NameForeign: "tomato", Confidence: 0.9},
		{NameLocal: "cà chua bi", NameForeign: "cherry tomato", Confidence: 0.82},
		{NameLocal: "tỏi", NameForeign: "garlic", Confidence: 0.97},
		{NameLocal: "thịt bò", NameForeign: "beef", Confidence: 0.7},
		{NameLocal: "húng quế", NameForeign: "basil", Confidence: 0.88},
		{NameLocal: "gừng", NameForeign: "ginger", Confidence: 0.93},
		{NameLocal: "hành tây", NameForeign: "onion", Confidence: 0.81},
		{NameLocal: "ớt", NameForeign: "chili", Confidence: 0.99},
	}
	floor := 0.8
	rec := &stubRecognizer{provider: vision.ProviderOpenAI, configured: true, candidates: candidates}
	svc := newTestService(&fakeCatalog{entries: entries}, rec)

	opts := Options{MaxResults: 4, ConfidenceThreshold: floor}
	first, err := svc.DetectIngredients(context.Background(), testImage, opts)
	if err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	got := first.DetectedIngredients

	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Confidence > got[j].Confidence }) {
		t.Errorf("results not sorted: %+v", got)
	}
	seen := map[string]bool{}
	for _, m := range got {
		if seen[m.IngredientID] {
			t.Errorf("duplicate id %s", m.IngredientID)
		}
		seen[m.IngredientID] = true
		if m.Confidence < 0 || m.Confidence > 1 {
			t.Errorf("confidence out of range: %v", m.Confidence)
		}
		if m.IngredientID == beef.ID {
			t.Error("candidate below floor appeared in results")
		}
	}

	second, err := svc.DetectIngredients(context.Background(), testImage, opts)
	if err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("repeated calls differ:\n%s\n%s", a, b)
	}
}

func TestDetectIngredientsErrors(t *testing.T) {
	upstream := common.NewUpstreamError("openai returned 500", nil)
	tests := []struct {
		name        string
		image       []byte
		provider    vision.Provider
		recognizers []vision.Recognizer
		wantCode    string
	}{
		{
			name:        "empty image",
			image:       nil,
			recognizers: []vision.Recognizer{&stubRecognizer{provider: vision.ProviderOpenAI, configured: true}},
			wantCode:    common.ErrCodeInput,
		},
		{
			name:        "unknown provider",
			image:       testImage,
			provider:    "claude",
			recognizers: []vision.Recognizer{&stubRecognizer{provider: vision.ProviderOpenAI, configured: true}},
			wantCode:    common.ErrCodeInput,
		},
		{
			name:  "no provider configured",
			image: testImage,
			recognizers: []vision.Recognizer{
				&stubRecognizer{provider: vision.ProviderOpenAI},
				&stubRecognizer{provider: vision.ProviderGemini},
			},
			wantCode: common.ErrCodeConfiguration,
		},
		{
			name:     "requested provider without key",
			image:    testImage,
			provider: vision.ProviderGemini,
			recognizers: []vision.Recognizer{
				&stubRecognizer{provider: vision.ProviderOpenAI, configured: true},
				&stubRecognizer{provider: vision.ProviderGemini},
			},
			wantCode: common.ErrCodeConfiguration,
		},
		{
			name:        "upstream failure",
			image:       testImage,
			recognizers: []vision.Recognizer{&stubRecognizer{provider: vision.ProviderOpenAI, configured: true, err: upstream}},
			wantCode:    common.ErrCodeUpstream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeCatalog{}, tt.recognizers...)
			_, err := svc.DetectIngredients(context.Background(), tt.image, Options{Provider: tt.provider})
			if err == nil {
				t.Fatal("expected error")
			}
			if code := common.ErrorCode(err); code != tt.wantCode {
				t.Errorf("ErrorCode() = %q, want %q (err = %v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestDetectIngredientsFallsBackToSecondaryProvider(t *testing.T) {
	openai := &stubRecognizer{provider: vision.ProviderOpenAI}
	gemini := &stubRecognizer{provider: vision.ProviderGemini, configured: true, candidates: []vision.Candidate{}}
	svc := newTestService(&fakeCatalog{}, openai, gemini)

	if _, err := svc.DetectIngredients(context.Background(), testImage, Options{}); err != nil {
		t.Fatalf("DetectIngredients() error = %v", err)
	}
	if openai.calls != 0 || gemini.calls != 1 {
		t.Errorf("calls openai=%d gemini=%d", openai.calls, gemini.calls)
	}
	if p, _ := svc.DefaultProvider(); p != vision.ProviderGemini {
		t.Errorf("DefaultProvider() = %q", p)
	}
	if got := svc.AvailableProviders(); len(got) != 1 || got[0] != vision.ProviderGemini {
		t.Errorf("AvailableProviders() = %v", got)
	}
}

func TestDetectIngredientsDoesNotSwallowMatcherCancel(t *testing.T) {
	rec := &stubRecognizer{provider: vision.ProviderOpenAI, configured: true, candidates: []vision.Candidate{
		{NameLocal: "cà chua", NameForeign: "tomato", Confidence: 0.9},
	}}
	svc := newTestService(&fakeCatalog{entries: []catalog.Entry{tomato}}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.DetectIngredients(ctx, testImage, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestMatchedIngredientJSON(t *testing.T) {
	days := 7
	body, err := json.Marshal(MatchedIngredient{IngredientID: "x", Name: "Tỏi", ShelfLifeDays: &days, Confidence: 0.9})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := decoded["category"]; !ok || v != nil {
		t.Errorf("category = %v, want null", v)
	}
	if aliases, ok := decoded["aliases"].([]any); !ok || len(aliases) != 0 {
		t.Errorf("aliases = %v, want []", decoded["aliases"])
	}
	if decoded["typicalShelfLifeDays"] != float64(7) || decoded["ingredientId"] != "x" {
		t.Errorf("decoded = %v", decoded)
	}
}
