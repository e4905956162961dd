package api

import (
	"context"
	"net/http"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
)

// PlatformDependencies defines the interface for platform administration.
type PlatformDependencies interface {
	InitializePlatform(ctx context.Context, caller string) error
	TransferOwnership(ctx context.Context, caller, newOwner string) error
	GetPlatformStats(ctx context.Context) (model.Platform, error)
}

// PlatformHandler handles /platform requests.
type PlatformHandler struct {
	deps PlatformDependencies
}

// NewPlatformHandler creates a new platform handler.
func NewPlatformHandler(deps PlatformDependencies) *PlatformHandler {
	return &PlatformHandler{deps: deps}
}

// HandleInitialize handles POST /platform/init.
func (h *PlatformHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.InitializePlatform(r.Context(), caller); err != nil {
		writeDomainError(w, err)
		return
	}
	stats, err := h.deps.GetPlatformStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stats)
}

// HandleTransferOwnership handles POST /platform/owner.
func (h *PlatformHandler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req types.TransferOwnershipRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.TransferOwnership(r.Context(), caller, req.NewOwner); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /platform/stats.
func (h *PlatformHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.GetPlatformStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
