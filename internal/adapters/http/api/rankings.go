package api

import (
	"errors"
	"net/http"
	"strconv"
)

const defaultTopLimit = 10

// RankingsHandler handles global ranking and scoring reads.
type RankingsHandler struct {
	deps     RankingDependencies
	scoring  LedgerDependencies
	maxLimit int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingDependencies, scoring LedgerDependencies, maxLimit int) *RankingsHandler {
	return &RankingsHandler{deps: deps, scoring: scoring, maxLimit: maxLimit}
}

// HandleTop handles GET /rankings?limit=N.
func (h *RankingsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}
	entries, err := h.deps.TopModels(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleModelRank handles GET /models/{id}/rank.
func (h *RankingsHandler) HandleModelRank(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rank, err := h.deps.ModelRank(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// HandleWeightedScore handles GET /scoring/weighted?score=&reputation=.
func (h *RankingsHandler) HandleWeightedScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	score, err := strconv.Atoi(q.Get("score"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("score must be an integer"))
		return
	}
	var rep uint64
	if raw := q.Get("reputation"); raw != "" {
		rep, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("reputation must be a non-negative integer"))
			return
		}
	}
	ws, err := h.scoring.ComputeWeightedScore(score, rep)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}
