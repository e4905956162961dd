package ledger

import (
	"errors"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/pkg/metrics"
)

func seedLeaderboards(tx repository.Tx, height uint64) error {
	for _, c := range category.All() {
		if err := tx.PutLeaderboard(model.NewLeaderboard(c, height)); err != nil {
			return err
		}
	}
	return nil
}

func loadLeaderboard(tx repository.Tx, c category.Category) (model.Leaderboard, error) {
	board, err := tx.Leaderboard(c)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Leaderboard{}, ErrCategoryNotSeeded
	}
	return board, err
}

// refreshLeaderboard updates the board of changed's category after changed
// was written to tx. Only the ranked models are read unless the change may
// pull an unranked model onto the board. Registrations pass registered=true
// to bump the category count; nothing else changes it.
func refreshLeaderboard(tx repository.Tx, changed model.Model, height uint64, registered bool) error {
	c := changed.Category
	board, err := loadLeaderboard(tx, c)
	if err != nil {
		return err
	}
	if registered {
		board.TotalModels++
	}

	ranked := make([]model.Model, 0, len(board.Ranked))
	for _, id := range board.Ranked {
		m, err := loadModel(tx, id)
		if err != nil {
			return err
		}
		ranked = append(ranked, m)
	}
	if !board.Place(ranked, changed, height) {
		models, err := tx.ModelsByCategory(c)
		if err != nil {
			return err
		}
		board.Rerank(models, height)
		metrics.RecordLeaderboardRecompute(c.String())
	}
	return tx.PutLeaderboard(board)
}
