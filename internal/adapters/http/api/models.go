package api

import (
	"context"
	"net/http"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
)

// ModelsDependencies defines the interface for model lifecycle calls.
type ModelsDependencies interface {
	RegisterModel(ctx context.Context, caller string, req types.RegisterModelRequest) (uint64, error)
	SubmitEvaluation(ctx context.Context, evaluator string, modelID uint64, score int, comment *string) error
	WithdrawModelStake(ctx context.Context, caller string, modelID uint64) error
	DeactivateModel(ctx context.Context, caller string, modelID uint64) error
	GetModel(ctx context.Context, id uint64) (model.Model, error)
	IsModelActive(ctx context.Context, id uint64) (types.Activity, error)
	GetEvaluation(ctx context.Context, evaluator string, modelID uint64) (model.Evaluation, error)
}

// ModelsHandler handles /models requests.
type ModelsHandler struct {
	deps ModelsDependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps ModelsDependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// HandleRegister handles POST /models.
func (h *ModelsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req types.RegisterModelRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := h.deps.RegisterModel(r.Context(), caller, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.Created{ID: id})
}

// HandleGet handles GET /models/{id}.
func (h *ModelsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.deps.GetModel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleActive handles GET /models/{id}/active. Unknown ids report inactive.
func (h *ModelsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	activity, err := h.deps.IsModelActive(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// HandleEvaluate handles POST /models/{id}/evaluations.
func (h *ModelsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req types.EvaluationRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.SubmitEvaluation(r.Context(), caller, id, *req.Score, req.Comment); err != nil {
		writeDomainError(w, err)
		return
	}
	ev, err := h.deps.GetEvaluation(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// HandleGetEvaluation handles GET /models/{id}/evaluations/{evaluator}.
func (h *ModelsHandler) HandleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ev, err := h.deps.GetEvaluation(r.Context(), r.PathValue("evaluator"), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleWithdraw handles POST /models/{id}/withdraw.
func (h *ModelsHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.deps.WithdrawModelStake)
}

// HandleDeactivate handles POST /models/{id}/deactivate.
func (h *ModelsHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.deps.DeactivateModel)
}

// lifecycle runs a caller-scoped model transition and returns the model.
func (h *ModelsHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string, uint64) error) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := op(r.Context(), caller, id); err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.deps.GetModel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
