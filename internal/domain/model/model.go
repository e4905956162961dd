// Package model contains the ledger records persisted by the repository and
// passed between layers.
package model

import (
	"github.com/okian/modelrank/internal/domain/category"
)

// Model is a registered catalog entry and its rolling evaluation statistics.
type Model struct {
	ID              uint64            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Creator         string            `json:"creator"`
	Category        category.Category `json:"category"`
	ContentHash     string            `json:"content_hash"`
	VoteCount       uint64            `json:"vote_count"`
	CumulativeScore uint64            `json:"cumulative_score"`
	AverageRating   uint64            `json:"average_rating"`
	StakeAmount     uint64            `json:"stake_amount"`
	RegisteredAt    uint64            `json:"registered_at"`
	Active          bool              `json:"active"`
	StakeWithdrawn  bool              `json:"stake_withdrawn"`
	LastUpdated     uint64            `json:"last_updated"`
}

// ApplyEvaluation folds one weighted score into the rolling statistics.
// Average is always floor(cumulative / count).
func (m *Model) ApplyEvaluation(weightedScore, height uint64) {
	m.VoteCount++
	m.CumulativeScore += weightedScore
	m.AverageRating = m.CumulativeScore / m.VoteCount
	m.LastUpdated = height
}

// Deactivate marks the model inactive. There is no way back.
func (m *Model) Deactivate(height uint64) {
	m.Active = false
	m.LastUpdated = height
}

// RanksBefore reports whether a is ranked ahead of b: higher average first,
// then more votes, then the lower identifier.
func RanksBefore(a, b Model) bool {
	if a.AverageRating != b.AverageRating {
		return a.AverageRating > b.AverageRating
	}
	if a.VoteCount != b.VoteCount {
		return a.VoteCount > b.VoteCount
	}
	return a.ID < b.ID
}

// Evaluation is a single participant's rating of a model. It is written once
// and never changes.
type Evaluation struct {
	Evaluator string `json:"evaluator"`
	ModelID   uint64 `json:"model_id"`
	Score     uint8  `json:"score"`
	Height    uint64 `json:"height"`
	// Comment is nil when the evaluator left none.
	Comment *string `json:"comment,omitempty"`
	// ReputationAtVote is the evaluator's points when the vote was cast.
	ReputationAtVote uint64 `json:"reputation_at_vote"`
}

// Platform holds the singleton platform record.
type Platform struct {
	Owner            string `json:"owner"`
	Initialized      bool   `json:"initialized"`
	InitializedAt    uint64 `json:"initialized_at"`
	NextModelID      uint64 `json:"next_model_id"`
	TotalModels      uint64 `json:"total_models"`
	ActiveModels     uint64 `json:"active_models"`
	TotalEvaluations uint64 `json:"total_evaluations"`
	TotalStaked      uint64 `json:"total_staked"`
}
