package model

import (
	"slices"
	"sort"

	"github.com/okian/modelrank/internal/domain/category"
)

// LeaderboardSize is the number of ranked models kept per category.
const LeaderboardSize = 10

// Leaderboard is the per-category aggregate view.
type Leaderboard struct {
	Category category.Category `json:"category"`
	// Ranked holds up to LeaderboardSize model ids, best first.
	Ranked      []uint64 `json:"ranked"`
	LastUpdated uint64   `json:"last_updated"`
	// TotalModels counts every registration ever made in the category.
	// Deactivation does not decrement it.
	TotalModels uint64 `json:"total_models"`
}

// NewLeaderboard returns an empty board seeded at height.
func NewLeaderboard(c category.Category, height uint64) Leaderboard {
	return Leaderboard{Category: c, Ranked: []uint64{}, LastUpdated: height}
}

// Rerank recomputes Ranked from the given models. Inactive models and models
// of other categories are ignored.
func (l *Leaderboard) Rerank(models []Model, height uint64) {
	candidates := make([]Model, 0, len(models))
	for _, m := range models {
		if m.Active && m.Category == l.Category {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return RanksBefore(candidates[i], candidates[j])
	})
	if len(candidates) > LeaderboardSize {
		candidates = candidates[:LeaderboardSize]
	}
	l.Ranked = make([]uint64, len(candidates))
	for i, m := range candidates {
		l.Ranked[i] = m.ID
	}
	l.LastUpdated = height
}

// Place updates Ranked for a change to one model, given the models ranked
// before the change. It reports false, leaving the board untouched, when an
// unranked model may now belong on a full board; the caller must then Rerank
// from the whole category.
func (l *Leaderboard) Place(ranked []Model, changed Model, height uint64) bool {
	next := make([]Model, 0, len(ranked)+1)
	wasRanked := false
	for _, m := range ranked {
		if m.ID == changed.ID {
			wasRanked = true
			continue
		}
		next = append(next, m)
	}
	if changed.Active && changed.Category == l.Category {
		i := sort.Search(len(next), func(i int) bool { return RanksBefore(changed, next[i]) })
		next = slices.Insert(next, i, changed)
	}
	if len(next) > LeaderboardSize {
		next = next[:LeaderboardSize]
	}

	// Models outside a full board rank after every model on it, except
	// possibly the changed one.
	if wasRanked && len(ranked) >= LeaderboardSize {
		if len(next) < LeaderboardSize || next[len(next)-1].ID == changed.ID {
			return false
		}
	}

	l.Ranked = make([]uint64, len(next))
	for i, m := range next {
		l.Ranked[i] = m.ID
	}
	l.LastUpdated = height
	return true
}

// Clone returns a deep copy safe to mutate independently.
func (l Leaderboard) Clone() Leaderboard {
	out := l
	out.Ranked = append([]uint64{}, l.Ranked...)
	return out
}
