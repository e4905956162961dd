package loadgen

import (
	"context"
	"fmt"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
	"github.com/okian/modelrank/pkg/logger"
)

// VerifyLeaderboard checks that a board is capped at the board size, ranked
// from 1 without gaps, and strictly ordered by the ranking rule.
func VerifyLeaderboard(board types.Leaderboard) error {
	if len(board.Entries) > model.LeaderboardSize {
		return fmt.Errorf("%s: %d entries exceeds %d", board.Category, len(board.Entries), model.LeaderboardSize)
	}
	for i, e := range board.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%s: entry %d has rank %d", board.Category, i, e.Rank)
		}
		if e.Category != board.Category {
			return fmt.Errorf("%s: entry %d belongs to %s", board.Category, i, e.Category)
		}
		if i == 0 {
			continue
		}
		prev := board.Entries[i-1]
		if !model.RanksBefore(asModel(prev), asModel(e)) {
			return fmt.Errorf("%s: model %d ranked before model %d out of order", board.Category, prev.ModelID, e.ModelID)
		}
	}
	return nil
}

func asModel(e types.Entry) model.Model {
	return model.Model{ID: e.ModelID, AverageRating: e.AverageRating, VoteCount: e.VoteCount}
}

// verifyResults reads every category board back and checks them.
func verifyResults(ctx context.Context, c *Client, stats *Stats) error {
	log := logger.Get().Named("loadgen")
	for _, cat := range category.All() {
		var board types.Leaderboard
		if err := c.Get(ctx, "/categories/"+cat.String()+"/leaderboard", &board); err != nil {
			return fmt.Errorf("leaderboard %s: %w", cat, err)
		}
		if err := VerifyLeaderboard(board); err != nil {
			return err
		}
		for _, e := range board.Entries {
			var active types.Activity
			if err := c.Get(ctx, fmt.Sprintf("/models/%d/active", e.ModelID), &active); err != nil {
				return err
			}
			if !active.Active {
				return fmt.Errorf("%s: inactive model %d on leaderboard", cat, e.ModelID)
			}
		}
		stats.BoardsVerified++
		stats.LeaderboardEntries += len(board.Entries)
		if len(board.Entries) > 0 {
			top := board.Entries[0]
			log.Info(ctx, "leaderboard verified",
				logger.String("category", cat.String()),
				logger.Int("entries", len(board.Entries)),
				logger.Uint64("topModel", top.ModelID),
				logger.Uint64("topAverage", top.AverageRating))
		}
	}
	return nil
}
