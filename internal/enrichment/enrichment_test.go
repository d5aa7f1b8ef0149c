package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/infra/memory"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
	"google.golang.org/genai"
)

var testCategories = []domain.Category{
	{GeneralCategory: "Food", DetailedCategory: "Coffee Shops", IsActive: true},
	{GeneralCategory: "Food", DetailedCategory: "Groceries", IsActive: true},
	{GeneralCategory: "Transportation", DetailedCategory: "Rideshare", IsActive: true},
}

type staticTaxonomy struct {
	categories []domain.Category
}

func (s staticTaxonomy) Active(ctx context.Context) ([]domain.Category, error) {
	return s.categories, nil
}

func (s staticTaxonomy) Validator(ctx context.Context) (*taxonomy.Validator, error) {
	return taxonomy.NewValidator(s.categories), nil
}

// mockGenerator is a hand-written fake for the GenAI models API.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// mockClassifier labels everything Food/Coffee Shops unless ClassifyFunc is set.
type mockClassifier struct {
	ClassifyFunc func(ctx context.Context, descriptions []string) ([]domain.Classification, error)
	calls        [][]string
}

func (m *mockClassifier) Classify(ctx context.Context, descriptions []string) ([]domain.Classification, error) {
	m.calls = append(m.calls, append([]string(nil), descriptions...))
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, descriptions)
	}
	out := make([]domain.Classification, len(descriptions))
	for i, d := range descriptions {
		out[i] = domain.Classification{Description: d, GeneralCategory: "Food", DetailedCategory: "Coffee Shops", ConfidenceScore: 0.9}
	}
	return out, nil
}

func (m *mockClassifier) ModelVersion() string { return "test-model" }

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"prose around", "Here you go:\n[1, 2]\nThanks", `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClassifications(t *testing.T) {
	descs := []string{"COFFEE SHOP", "UBER TRIP"}
	raw := "```json\n[" +
		`{"description_number": 2, "general_category": " Transportation ", "detailed_category": "Rideshare", "confidence_score": 0.8},` +
		`{"description_number": 2, "general_category": "Food", "detailed_category": "Coffee Shops", "confidence_score": 0.1},` +
		`{"description_number": 7, "general_category": "Food", "detailed_category": "Coffee Shops", "confidence_score": 0.9},` +
		`{"description_number": 1, "general_category": "Food", "detailed_category": "Coffee Shops", "confidence_score": 0.9}` +
		"]\n```"

	got, err := parseClassifications(raw, descs)
	if err != nil {
		t.Fatalf("parseClassifications() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d classifications, want 2: %+v", len(got), got)
	}
	if got[0].Description != "UBER TRIP" || got[0].GeneralCategory != "Transportation" {
		t.Errorf("first answer per number must win, got %+v", got[0])
	}
	if got[1].Description != "COFFEE SHOP" {
		t.Errorf("got[1] = %+v", got[1])
	}

	if _, err := parseClassifications("I cannot help with that", descs); err == nil {
		t.Error("expected error for non-JSON reply")
	}
}

func TestGeminiClassifier_Classify(t *testing.T) {
	var prompt, usedModel string
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			usedModel = model
			prompt = contents[0].Parts[0].Text
			return textResponse(`[{"description_number": 1, "general_category": "Food", "detailed_category": "Coffee Shops", "confidence_score": 0.9}]`), nil
		},
	}
	c := newGeminiClassifier(gen, "", staticTaxonomy{categories: testCategories})

	got, err := c.Classify(context.Background(), []string{"COFFEE SHOP", "UBER TRIP"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if usedModel != DefaultModelName || c.ModelVersion() != DefaultModelName {
		t.Errorf("model = %q, want %q", usedModel, DefaultModelName)
	}
	for _, want := range []string{"1. COFFEE SHOP", "2. UBER TRIP", "**Food:**", "  - Coffee Shops", "Respond ONLY with the JSON array"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if len(got) != 1 || got[0].Description != "COFFEE SHOP" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestGeminiClassifier_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "api error", err: errors.New("quota exceeded")},
		{name: "empty reply", resp: textResponse("")},
		{name: "malformed reply", resp: textResponse("{not json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			c := newGeminiClassifier(gen, "m", staticTaxonomy{categories: testCategories})
			if _, err := c.Classify(context.Background(), []string{"X"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func canonical(descs ...string) []domain.CanonicalTransaction {
	out := make([]domain.CanonicalTransaction, len(descs))
	for i, d := range descs {
		out[i] = domain.CanonicalTransaction{TransactionID: fmt.Sprint(i), Description: d}
	}
	return out
}

func TestFindUncategorized(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()
	_ = cache.AppendCacheEntries(ctx, []domain.CategoryCacheEntry{
		{DescriptionKey: "COFFEE SHOP", GeneralCategory: "Food", DetailedCategory: "Coffee Shops"},
	})
	svc := NewService(&mockClassifier{}, cache, staticTaxonomy{categories: testCategories}, Options{})

	txs := canonical("COFFEE SHOP", "UBER TRIP", "", "UBER TRIP", "AMAZON")

	got, err := svc.FindUncategorized(ctx, txs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "AMAZON,UBER TRIP" {
		t.Errorf("FindUncategorized() = %v", got)
	}

	forced, _ := svc.FindUncategorized(ctx, txs, map[string]bool{"COFFEE SHOP": true, "NOT IN SET": true})
	if strings.Join(forced, ",") != "AMAZON,COFFEE SHOP,UBER TRIP" {
		t.Errorf("FindUncategorized(forced) = %v", forced)
	}
}

func TestClassifyAndCache_BatchIsolation(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()

	descs := make([]string, 45)
	for i := range descs {
		descs[i] = fmt.Sprintf("MERCHANT %02d", i)
	}

	calls := 0
	classifier := &mockClassifier{}
	classifier.ClassifyFunc = func(ctx context.Context, batch []string) ([]domain.Classification, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("model timeout")
		}
		out := make([]domain.Classification, len(batch))
		for i, d := range batch {
			out[i] = domain.Classification{Description: d, GeneralCategory: "Food", DetailedCategory: "Groceries", ConfidenceScore: 0.7}
		}
		return out, nil
	}

	svc := NewService(classifier, cache, staticTaxonomy{categories: testCategories}, Options{BatchSize: 20})
	res, err := svc.ClassifyAndCache(ctx, descs)
	if err != nil {
		t.Fatalf("ClassifyAndCache() error = %v", err)
	}

	var sizes []int
	for _, c := range classifier.calls {
		sizes = append(sizes, len(c))
	}
	if fmt.Sprint(sizes) != "[20 20 5]" {
		t.Fatalf("batch sizes = %v, want [20 20 5]", sizes)
	}
	if res.NewCategories != 25 {
		t.Errorf("NewCategories = %d, want 25", res.NewCategories)
	}
	if len(res.FailedBatches) != 1 || res.FailedBatches[0].Batch != 2 || len(res.FailedBatches[0].Descriptions) != 20 {
		t.Fatalf("FailedBatches = %+v", res.FailedBatches)
	}

	// The failed batch's descriptions are still uncached and retried next time.
	remaining, err := svc.FindUncategorized(ctx, canonical(descs...), nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(remaining, ",") != strings.Join(descs[20:40], ",") {
		t.Errorf("remaining = %v, want second batch", remaining)
	}
}

func TestClassifyAndCache_AnswerHandling(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()
	classifier := &mockClassifier{
		ClassifyFunc: func(ctx context.Context, batch []string) ([]domain.Classification, error) {
			return []domain.Classification{
				{Description: "COFFEE SHOP", GeneralCategory: "food", DetailedCategory: "coffee shops", ConfidenceScore: 0.9},
				{Description: "UBER TRIP", GeneralCategory: "Travel", DetailedCategory: "Rideshare", ConfidenceScore: 0.9},
				{Description: "BAKERY", GeneralCategory: "Food", DetailedCategory: "Coffee Shops", ConfidenceScore: 1.5},
				{Description: "CORNER STORE", GeneralCategory: "Food", DetailedCategory: "Uncategorized", ConfidenceScore: 0.3},
			}, nil
		},
	}
	svc := NewService(classifier, cache, staticTaxonomy{categories: testCategories}, Options{})
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.ClassifyAndCache(ctx, []string{"COFFEE SHOP", "UBER TRIP", "BAKERY", "CORNER STORE", "MISSING"})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewCategories != 3 {
		t.Errorf("NewCategories = %d, want 3", res.NewCategories)
	}
	// off-taxonomy UBER TRIP, out-of-range BAKERY, unanswered MISSING
	if len(res.Warnings) != 3 {
		t.Errorf("Warnings = %v, want 3", res.Warnings)
	}

	entries, _ := cache.ListCacheEntries(ctx)
	if len(entries) != 3 {
		t.Fatalf("cache has %d entries, want 3", len(entries))
	}
	coffee := entries[0]
	if coffee.DescriptionKey != "COFFEE SHOP" || coffee.GeneralCategory != "Food" || coffee.DetailedCategory != "Coffee Shops" {
		t.Errorf("entry not canonicalized: %+v", coffee)
	}
	if coffee.ModelVersion != "test-model" || !coffee.UpdatedAt.Equal(fixed) {
		t.Errorf("entry metadata = %+v", coffee)
	}
	if entries[1].DescriptionKey != "CORNER STORE" || entries[1].DetailedCategory != domain.UncategorizedLabel {
		t.Errorf("Uncategorized detailed label should be accepted, got %+v", entries[1])
	}
	if uber := entries[2]; uber.GeneralCategory != "Travel" || uber.DetailedCategory != "Rideshare" {
		t.Errorf("off-taxonomy answer should be cached as answered, got %+v", uber)
	}
}

func TestClassifyAndCache_OffTaxonomyAnswerIsNotResent(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()
	seed, err := taxonomy.Seed(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	classifier := &mockClassifier{}
	svc := NewService(classifier, cache, staticTaxonomy{categories: seed}, Options{})
	txs := canonical("COFFEE SHOP")

	for run := 0; run < 3; run++ {
		missing, err := svc.FindUncategorized(ctx, txs, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.ClassifyAndCache(ctx, missing); err != nil {
			t.Fatal(err)
		}
	}

	if len(classifier.calls) != 1 {
		t.Errorf("classifier calls = %d, want 1", len(classifier.calls))
	}
	entries, _ := cache.ListCacheEntries(ctx)
	if len(entries) != 1 || entries[0].GeneralCategory != "Food" || entries[0].DetailedCategory != "Coffee Shops" {
		t.Errorf("cache = %+v", entries)
	}
}

// failingCache wraps the memory store and fails every append.
type failingCache struct {
	*memory.Store
}

func (f failingCache) AppendCacheEntries(ctx context.Context, entries []domain.CategoryCacheEntry) error {
	return &domain.StoreError{Op: "append cache entries", Err: errors.New("disk full")}
}

func TestClassifyAndCache_StoreErrorAborts(t *testing.T) {
	classifier := &mockClassifier{}
	svc := NewService(classifier, failingCache{memory.NewStore()}, staticTaxonomy{categories: testCategories}, Options{BatchSize: 1})

	_, err := svc.ClassifyAndCache(context.Background(), []string{"A", "B"})
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("error = %v, want StoreError", err)
	}
	if len(classifier.calls) != 1 {
		t.Errorf("classifier called %d times, want 1", len(classifier.calls))
	}
}

func TestClassifyAndCache_BatchTimeout(t *testing.T) {
	classifier := &mockClassifier{
		ClassifyFunc: func(ctx context.Context, batch []string) ([]domain.Classification, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := NewService(classifier, memory.NewStore(), staticTaxonomy{categories: testCategories}, Options{Timeout: 10 * time.Millisecond})

	res, err := svc.ClassifyAndCache(context.Background(), []string{"SLOW"})
	if err != nil {
		t.Fatalf("ClassifyAndCache() error = %v", err)
	}
	if len(res.FailedBatches) != 1 || !errors.Is(res.FailedBatches[0], context.DeadlineExceeded) {
		t.Errorf("FailedBatches = %+v", res.FailedBatches)
	}
}
