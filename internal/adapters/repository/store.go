// Package repository persists the ledger tables behind a transactional store.
package repository

import (
	"context"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
)

// Tx is a consistent view of every ledger table inside one transaction.
// Getters return ErrNotFound for missing keys. Records are returned by value
// and callers write them back with the matching Put method.
type Tx interface {
	Model(id uint64) (model.Model, error)
	PutModel(m model.Model) error
	// ModelsByCategory returns every model ever registered in c, ordered by id.
	ModelsByCategory(c category.Category) ([]model.Model, error)
	// Models returns every model, ordered by id.
	Models() ([]model.Model, error)

	Evaluation(evaluator string, modelID uint64) (model.Evaluation, error)
	PutEvaluation(e model.Evaluation) error

	StakeAccount(participant string) (model.StakeAccount, error)
	PutStakeAccount(a model.StakeAccount) error

	Reputation(participant string) (model.ReputationProfile, error)
	PutReputation(r model.ReputationProfile) error

	Leaderboard(c category.Category) (model.Leaderboard, error)
	PutLeaderboard(l model.Leaderboard) error

	Platform() (model.Platform, error)
	PutPlatform(p model.Platform) error
}

// Store runs functions inside transactions.
type Store interface {
	// Update runs fn in a read-write transaction. Writes become visible only
	// if fn returns nil; otherwise nothing is applied.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction. Put methods fail with ErrReadOnly.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Backend names the implementation for logs and metrics.
	Backend() string
	Close() error
}
