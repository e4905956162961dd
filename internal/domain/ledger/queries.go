package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/scoring"
)

// GetModel returns the model with the given id.
func (l *Ledger) GetModel(ctx context.Context, id uint64) (model.Model, error) {
	var m model.Model
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		m, err = loadModel(tx, id)
		return err
	})
	return m, err
}

// GetEvaluation returns evaluator's rating of a model.
func (l *Ledger) GetEvaluation(ctx context.Context, evaluator string, modelID uint64) (model.Evaluation, error) {
	var e model.Evaluation
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		e, err = tx.Evaluation(evaluator, modelID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s on model %d", ErrEvaluationNotFound, evaluator, modelID)
		}
		return err
	})
	return e, err
}

// GetReputation returns the participant's profile. Unknown participants get
// an empty profile.
func (l *Ledger) GetReputation(ctx context.Context, participant string) (model.ReputationProfile, error) {
	var r model.ReputationProfile
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		r, err = loadReputation(tx, participant)
		return err
	})
	return r, err
}

// GetStakeAccount returns the participant's stake record, empty if none.
func (l *Ledger) GetStakeAccount(ctx context.Context, participant string) (model.StakeAccount, error) {
	var a model.StakeAccount
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		a, err = loadStakeAccount(tx, participant)
		return err
	})
	if a.StakedModels == nil {
		a.StakedModels = []uint64{}
	}
	return a, err
}

// GetStakeBalance returns the amount the participant currently has staked.
func (l *Ledger) GetStakeBalance(ctx context.Context, participant string) (uint64, error) {
	a, err := l.GetStakeAccount(ctx, participant)
	return a.TotalStaked, err
}

// GetLeaderboard returns the board for a category wire name.
func (l *Ledger) GetLeaderboard(ctx context.Context, name string) (model.Leaderboard, error) {
	c, err := parseCategory(name)
	if err != nil {
		return model.Leaderboard{}, err
	}
	var board model.Leaderboard
	err = l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		board, err = loadLeaderboard(tx, c)
		if errors.Is(err, ErrCategoryNotSeeded) {
			return fmt.Errorf("%w: %s", ErrCategoryNotSeeded, c)
		}
		return err
	})
	return board, err
}

// GetRankedModels returns the board for a category wire name together with
// its ranked models, in rank order, read from one consistent snapshot.
func (l *Ledger) GetRankedModels(ctx context.Context, name string) (model.Leaderboard, []model.Model, error) {
	c, err := parseCategory(name)
	if err != nil {
		return model.Leaderboard{}, nil, err
	}
	var (
		board  model.Leaderboard
		ranked []model.Model
	)
	err = l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		board, err = loadLeaderboard(tx, c)
		if errors.Is(err, ErrCategoryNotSeeded) {
			return fmt.Errorf("%w: %s", ErrCategoryNotSeeded, c)
		}
		if err != nil {
			return err
		}
		ranked = make([]model.Model, 0, len(board.Ranked))
		for _, id := range board.Ranked {
			m, err := loadModel(tx, id)
			if err != nil {
				return fmt.Errorf("resolve ranked model %d: %w", id, err)
			}
			ranked = append(ranked, m)
		}
		return nil
	})
	return board, ranked, err
}

// GetPlatformStats returns the platform record. Before initialization it
// reports an uninitialized platform owned by the configured owner.
func (l *Ledger) GetPlatformStats(ctx context.Context) (model.Platform, error) {
	var p model.Platform
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.Platform()
		if errors.Is(err, repository.ErrNotFound) {
			p = model.Platform{Owner: l.owner}
			return nil
		}
		return err
	})
	return p, err
}

// IsCategoryValid reports whether name is one of the eight categories.
func (l *Ledger) IsCategoryValid(name string) bool {
	_, err := category.Parse(name)
	return err == nil
}

// ComputeWeightedScore applies the weighting rule without recording anything.
func (l *Ledger) ComputeWeightedScore(score int, reputation uint64) (uint64, error) {
	if err := checkScore(score); err != nil {
		return 0, err
	}
	res, err := l.scorer.Score(scoring.Input{Score: uint8(score), Reputation: reputation})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRating, err)
	}
	return res.WeightedScore, nil
}

// IsModelActive reports whether the model exists and is active.
func (l *Ledger) IsModelActive(ctx context.Context, id uint64) (bool, error) {
	m, err := l.GetModel(ctx, id)
	if errors.Is(err, ErrModelNotFound) {
		return false, nil
	}
	return m.Active, err
}

// ListModelsInCategory returns every model ever registered under the category,
// inactive ones included, ordered by id.
func (l *Ledger) ListModelsInCategory(ctx context.Context, name string) ([]model.Model, error) {
	c, err := parseCategory(name)
	if err != nil {
		return nil, err
	}
	var out []model.Model
	err = l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ModelsByCategory(c)
		return err
	})
	if out == nil {
		out = []model.Model{}
	}
	return out, err
}

// Models returns every registered model ordered by id.
func (l *Ledger) Models(ctx context.Context) ([]model.Model, error) {
	var out []model.Model
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Models()
		return err
	})
	return out, err
}

// LastHeight returns the highest height recorded anywhere in store. A clock
// resumed from it never runs behind persisted records.
func LastHeight(ctx context.Context, store repository.Store) (uint64, error) {
	var last uint64
	err := store.View(ctx, func(tx repository.Tx) error {
		p, err := tx.Platform()
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		last = max(last, p.InitializedAt)

		for _, c := range category.All() {
			board, err := tx.Leaderboard(c)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			last = max(last, board.LastUpdated)
		}

		models, err := tx.Models()
		if err != nil {
			return err
		}
		for _, m := range models {
			last = max(last, m.RegisteredAt, m.LastUpdated)
		}
		return nil
	})
	return last, err
}
