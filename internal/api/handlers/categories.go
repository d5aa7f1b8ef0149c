package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/money-mirror/internal/api/middleware"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
)

// CategoryInitializer seeds the taxonomy table.
type CategoryInitializer interface {
	InitializeCategories(ctx context.Context, categories []domain.Category) (int, error)
}

// TaxonomySource serves the active taxonomy and can drop its read cache.
type TaxonomySource interface {
	Active(ctx context.Context) ([]domain.Category, error)
	Invalidate()
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	repo     CategoryInitializer
	taxonomy TaxonomySource
	now      func() time.Time
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(repo CategoryInitializer, taxonomy TaxonomySource) *CategoriesHandler {
	return &CategoriesHandler{
		repo:     repo,
		taxonomy: taxonomy,
		now:      time.Now,
	}
}

// InitCategories handles POST /init-categories. Seeding only happens when the
// table is empty, so repeated calls insert nothing.
func (h *CategoriesHandler) InitCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	seed, err := taxonomy.Seed(h.now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load taxonomy seed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load taxonomy seed")
		return
	}

	inserted, err := h.repo.InitializeCategories(ctx, seed)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to initialize categories: "+err.Error())
		return
	}
	h.taxonomy.Invalidate()

	message := "Categories already initialized"
	if inserted > 0 {
		message = fmt.Sprintf("Initialized %d categories", inserted)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"message":  message,
		"inserted": inserted,
	})
}

// ListCategories handles GET /api/categories.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.taxonomy.Active(r.Context())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	generals, detailed := taxonomy.Group(categories)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"general_categories": generals,
		"categories":         detailed,
		"count":              len(categories),
	})
}
