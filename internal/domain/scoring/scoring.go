// Package scoring defines how an evaluator's reputation weights a rating.
package scoring

import (
	"errors"
	"fmt"
)

// Default scoring configuration constants.
const (
	MinScore = 1
	MaxScore = 10
	// defaultPointsPerStep is the reputation needed for each extra unit of weight.
	defaultPointsPerStep = 100
)

// ErrScoreOutOfRange is returned for ratings outside [MinScore, MaxScore].
var ErrScoreOutOfRange = errors.New("score out of range")

// Option applies a configuration option to the ReputationScorer.
type Option func(*ReputationScorer)

// WithPointsPerStep sets how many reputation points add one unit of weight.
func WithPointsPerStep(points uint64) Option {
	return func(s *ReputationScorer) {
		if points > 0 {
			s.pointsPerStep = points
		}
	}
}

// Input abstracts the vote fields needed for scoring.
type Input struct {
	Score      uint8
	Reputation uint64
}

// Result contains the weight applied and the resulting weighted score.
type Result struct {
	Weight        uint64
	WeightedScore uint64
}

// Scorer computes a weighted score from a rating and the rater's reputation.
type Scorer interface {
	Score(in Input) (Result, error)
	// Weight returns the multiplier for a given reputation.
	Weight(reputation uint64) uint64
}

// ReputationScorer weights ratings by 1 + floor(reputation / pointsPerStep).
// Integer arithmetic throughout; the weight never decreases as reputation grows.
type ReputationScorer struct {
	pointsPerStep uint64
}

// NewReputationScorer creates a scorer with configuration options.
func NewReputationScorer(opts ...Option) *ReputationScorer {
	s := &ReputationScorer{
		pointsPerStep: defaultPointsPerStep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Weight returns 1 + floor(reputation / pointsPerStep).
func (s *ReputationScorer) Weight(reputation uint64) uint64 {
	return 1 + reputation/s.pointsPerStep
}

// Score validates the rating and applies the reputation weight.
func (s *ReputationScorer) Score(in Input) (Result, error) {
	if in.Score < MinScore || in.Score > MaxScore {
		return Result{}, fmt.Errorf("%w: %d not in [%d,%d]", ErrScoreOutOfRange, in.Score, MinScore, MaxScore)
	}
	w := s.Weight(in.Reputation)
	return Result{
		Weight:        w,
		WeightedScore: uint64(in.Score) * w,
	}, nil
}

// PointsPerStep returns the configured reputation step.
func (s *ReputationScorer) PointsPerStep() uint64 {
	return s.pointsPerStep
}
