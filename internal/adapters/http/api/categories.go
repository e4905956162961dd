package api

import (
	"context"
	"net/http"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
)

// CategoryDependencies defines the interface for category reads.
type CategoryDependencies interface {
	IsCategoryValid(name string) bool
	ListModelsInCategory(ctx context.Context, name string) ([]model.Model, error)
}

// CategoriesHandler handles /categories requests.
type CategoriesHandler struct {
	deps    CategoryDependencies
	ranking RankingDependencies
}

type categoryValidity struct {
	Category string `json:"category"`
	Valid    bool   `json:"valid"`
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(deps CategoryDependencies, ranking RankingDependencies) *CategoriesHandler {
	return &CategoriesHandler{deps: deps, ranking: ranking}
}

// HandleList handles GET /categories.
func (h *CategoriesHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	all := category.All()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.String()
	}
	writeJSON(w, http.StatusOK, names)
}

// HandleValidity handles GET /categories/{category}.
func (h *CategoriesHandler) HandleValidity(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("category")
	writeJSON(w, http.StatusOK, categoryValidity{Category: name, Valid: h.deps.IsCategoryValid(name)})
}

// HandleLeaderboard handles GET /categories/{category}/leaderboard.
func (h *CategoriesHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.ranking.Leaderboard(r.Context(), r.PathValue("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleModels handles GET /categories/{category}/models.
func (h *CategoriesHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.deps.ListModelsInCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}
