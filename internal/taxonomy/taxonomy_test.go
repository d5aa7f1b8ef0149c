package taxonomy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
)

func TestSeed(t *testing.T) {
	cats, err := Seed(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cats) != 60 {
		t.Errorf("len(Seed) = %d, want 60", len(cats))
	}
	if cats[0].CategoryID != "cat_001" || cats[0].GeneralCategory != "Groceries" || cats[0].DetailedCategory != "Supermarkets" {
		t.Errorf("first category = %+v", cats[0])
	}
	last := cats[len(cats)-1]
	if last.CategoryID != "cat_060" || last.GeneralCategory != domain.UncategorizedLabel {
		t.Errorf("last category = %+v", last)
	}

	order, grouped := Group(cats)
	if len(order) != 13 {
		t.Errorf("general categories = %d, want 13", len(order))
	}
	if len(grouped["Housing & Utilities"]) != 8 {
		t.Errorf("Housing & Utilities has %d entries", len(grouped["Housing & Utilities"]))
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	if _, err := parseSeed([]byte("categories: [{detailed: [x]}]"), time.Now()); err == nil {
		t.Error("expected error for category without general name")
	}
	if _, err := parseSeed([]byte("categories: {"), time.Now()); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestPromptText(t *testing.T) {
	cats := []domain.Category{
		{GeneralCategory: "Food", DetailedCategory: "Coffee Shops", IsActive: true},
		{GeneralCategory: "Food", DetailedCategory: "Groceries", IsActive: true},
		{GeneralCategory: "Old", DetailedCategory: "Retired", IsActive: false},
	}
	text := PromptText(cats)
	if !strings.Contains(text, "**Food:**\n  - Coffee Shops\n  - Groceries\n") {
		t.Errorf("unexpected prompt text:\n%s", text)
	}
	if strings.Contains(text, "Retired") {
		t.Error("inactive categories must not be listed")
	}
}

func TestValidator_Canonicalize(t *testing.T) {
	v := NewValidator([]domain.Category{
		{GeneralCategory: "Dining & Restaurants", DetailedCategory: "Coffee Shops", IsActive: true},
		{GeneralCategory: "Dining & Restaurants", DetailedCategory: "Fast Food", IsActive: true},
		{GeneralCategory: "Transportation", DetailedCategory: "Parking", IsActive: true},
	})

	tests := []struct {
		name         string
		general      string
		detailed     string
		wantGeneral  string
		wantDetailed string
		wantErr      bool
	}{
		{"exact", "Dining & Restaurants", "Coffee Shops", "Dining & Restaurants", "Coffee Shops", false},
		{"different case and spaces", "  dining & restaurants ", "COFFEE SHOPS", "Dining & Restaurants", "Coffee Shops", false},
		{"uncategorized detail", "Transportation", "uncategorized", "Transportation", domain.UncategorizedLabel, false},
		{"unknown general", "Food", "Coffee Shops", "", "", true},
		{"detail from another general", "Transportation", "Fast Food", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, d, err := v.Canonicalize(tt.general, tt.detailed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Canonicalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if g != tt.wantGeneral || d != tt.wantDetailed {
				t.Errorf("Canonicalize() = (%q, %q), want (%q, %q)", g, d, tt.wantGeneral, tt.wantDetailed)
			}
		})
	}
}

type mockLister struct {
	ListActiveCategoriesFunc func(ctx context.Context) ([]domain.Category, error)
	calls                    int
}

func (m *mockLister) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	m.calls++
	return m.ListActiveCategoriesFunc(ctx)
}

func TestProvider_CachesAndInvalidates(t *testing.T) {
	lister := &mockLister{
		ListActiveCategoriesFunc: func(ctx context.Context) ([]domain.Category, error) {
			return []domain.Category{{GeneralCategory: "Food", DetailedCategory: "Coffee Shops", IsActive: true}}, nil
		},
	}
	p := NewProvider(lister, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cats, err := p.Active(ctx)
		if err != nil || len(cats) != 1 {
			t.Fatalf("Active() = %v, %v", cats, err)
		}
	}
	if lister.calls != 1 {
		t.Errorf("store read %d times, want 1", lister.calls)
	}

	p.Invalidate()
	if _, err := p.Active(ctx); err != nil {
		t.Fatal(err)
	}
	if lister.calls != 2 {
		t.Errorf("store read %d times after invalidate, want 2", lister.calls)
	}
}

func TestProvider_FallsBackToSeed(t *testing.T) {
	lister := &mockLister{
		ListActiveCategoriesFunc: func(ctx context.Context) ([]domain.Category, error) { return nil, nil },
	}
	v, err := NewProvider(lister, time.Minute).Validator(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := v.Canonicalize("Groceries", "Supermarkets"); err != nil {
		t.Errorf("seed taxonomy should validate Groceries/Supermarkets: %v", err)
	}
}

func TestProvider_StoreError(t *testing.T) {
	lister := &mockLister{
		ListActiveCategoriesFunc: func(ctx context.Context) ([]domain.Category, error) {
			return nil, errors.New("unavailable")
		},
	}
	if _, err := NewProvider(lister, time.Minute).Active(context.Background()); err == nil {
		t.Error("expected error from store")
	}
}
