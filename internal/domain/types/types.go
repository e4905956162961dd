// Package types contains the request and response shapes shared by the API
// and its clients.
package types

import "github.com/okian/modelrank/internal/domain/model"

// Entry represents a leaderboard entry
type Entry struct {
	Rank          int    `json:"rank"`
	ModelID       uint64 `json:"model_id"`
	Name          string `json:"name,omitempty"`
	Category      string `json:"category"`
	AverageRating uint64 `json:"average_rating"`
	VoteCount     uint64 `json:"vote_count"`
}

// EntryFromModel builds the entry for m at the given 1-based rank.
func EntryFromModel(rank int, m model.Model) Entry {
	return Entry{
		Rank:          rank,
		ModelID:       m.ID,
		Name:          m.Name,
		Category:      m.Category.String(),
		AverageRating: m.AverageRating,
		VoteCount:     m.VoteCount,
	}
}

// Leaderboard is a category board with its ranked ids resolved to entries.
type Leaderboard struct {
	Category    string  `json:"category"`
	Entries     []Entry `json:"entries"`
	LastUpdated uint64  `json:"last_updated"`
	TotalModels uint64  `json:"total_models"`
}

// ModelRank is a model's position globally and within its category.
type ModelRank struct {
	ModelID      uint64 `json:"model_id"`
	Category     string `json:"category"`
	GlobalRank   int    `json:"global_rank"`
	GlobalSize   int    `json:"global_size"`
	CategoryRank int    `json:"category_rank"`
	CategorySize int    `json:"category_size"`
}

// WeightedScore is the result of the weighting rule for one rating.
type WeightedScore struct {
	Score         int    `json:"score"`
	Reputation    uint64 `json:"reputation"`
	Weight        uint64 `json:"weight"`
	WeightedScore uint64 `json:"weighted_score"`
}

// StakeBalance reports a participant's currently staked total.
type StakeBalance struct {
	Participant string `json:"participant"`
	TotalStaked uint64 `json:"total_staked"`
}

// Activity reports whether a model can still be evaluated.
type Activity struct {
	ModelID uint64 `json:"model_id"`
	Active  bool   `json:"active"`
}

// Created is returned by POST /models.
type Created struct {
	ID uint64 `json:"id"`
}

// RegisterModelRequest is the body of POST /models. Length rules are enforced
// by the ledger so that they surface with ledger error codes.
type RegisterModelRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	ContentHash string `json:"content_hash" validate:"required"`
}

// EvaluationRequest is the body of POST /models/{id}/evaluations.
type EvaluationRequest struct {
	Score   *int    `json:"score" validate:"required"`
	Comment *string `json:"comment,omitempty"`
}

// TransferOwnershipRequest is the body of POST /platform/owner.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner" validate:"required"`
}
