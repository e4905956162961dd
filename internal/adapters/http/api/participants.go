package api

import (
	"context"
	"net/http"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
)

// ParticipantDependencies defines the interface for per-participant reads.
type ParticipantDependencies interface {
	GetReputation(ctx context.Context, participant string) (model.ReputationProfile, error)
	GetStakeAccount(ctx context.Context, participant string) (model.StakeAccount, error)
	GetStakeBalance(ctx context.Context, participant string) (types.StakeBalance, error)
}

// ParticipantsHandler handles /participants and the dev faucet.
type ParticipantsHandler struct {
	deps   ParticipantDependencies
	wallet WalletDependencies
}

type balanceResponse struct {
	Participant string `json:"participant"`
	Balance     uint64 `json:"balance"`
}

type stakeResponse struct {
	model.StakeAccount
	Balance types.StakeBalance `json:"balance"`
}

// NewParticipantsHandler creates a new participants handler.
func NewParticipantsHandler(deps ParticipantDependencies, wallet WalletDependencies) *ParticipantsHandler {
	return &ParticipantsHandler{deps: deps, wallet: wallet}
}

// HandleReputation handles GET /participants/{id}/reputation.
func (h *ParticipantsHandler) HandleReputation(w http.ResponseWriter, r *http.Request) {
	rep, err := h.deps.GetReputation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleStake handles GET /participants/{id}/stake.
func (h *ParticipantsHandler) HandleStake(w http.ResponseWriter, r *http.Request) {
	who := r.PathValue("id")
	acct, err := h.deps.GetStakeAccount(r.Context(), who)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bal, err := h.deps.GetStakeBalance(r.Context(), who)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stakeResponse{StakeAccount: acct, Balance: bal})
}

// HandleBalance handles GET /participants/{id}/balance.
func (h *ParticipantsHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	who := r.PathValue("id")
	bal, err := h.wallet.Balance(r.Context(), who)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Participant: who, Balance: bal})
}

// HandleFaucet handles POST /dev/faucet, crediting the caller.
func (h *ParticipantsHandler) HandleFaucet(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bal, err := h.wallet.Faucet(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Participant: caller, Balance: bal})
}
