package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/scoring"
	"github.com/okian/modelrank/pkg/logger"
)

// SubmitEvaluation records evaluator's one and only rating of a model,
// weighted by the evaluator's reputation at this moment.
func (l *Ledger) SubmitEvaluation(ctx context.Context, evaluator string, modelID uint64, score int, comment *string) (err error) {
	const op = "evaluate"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	if err := l.checkParticipant(evaluator); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	height := l.clock.CurrentHeight()
	var (
		updated  model.Model
		platform model.Platform
		weighted scoring.Result
	)
	err = l.store.Update(ctx, func(tx repository.Tx) error {
		p, err := loadPlatform(tx)
		if err != nil {
			return err
		}
		m, err := loadModel(tx, modelID)
		if err != nil {
			return err
		}
		if !m.Active {
			return fmt.Errorf("%w: model %d", ErrModelDeactivated, modelID)
		}
		if err := checkScore(score); err != nil {
			return err
		}
		_, err = tx.Evaluation(evaluator, modelID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s already rated model %d", ErrDuplicateVote, evaluator, modelID)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if err := checkComment(comment); err != nil {
			return err
		}

		// Reputation is read once; the snapshot and the weight both come from it.
		rep, err := loadReputation(tx, evaluator)
		if err != nil {
			return err
		}
		snapshot := rep.Points
		weighted, err = l.scorer.Score(scoring.Input{Score: uint8(score), Reputation: snapshot})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRating, err)
		}

		e := model.Evaluation{
			Evaluator:        evaluator,
			ModelID:          modelID,
			Score:            uint8(score),
			Height:           height,
			ReputationAtVote: snapshot,
		}
		if comment != nil {
			c := *comment
			e.Comment = &c
		}
		if err := tx.PutEvaluation(e); err != nil {
			return err
		}

		m.ApplyEvaluation(weighted.WeightedScore, height)
		if err := tx.PutModel(m); err != nil {
			return err
		}

		rep.AwardEvaluation(height)
		if err := tx.PutReputation(rep); err != nil {
			return err
		}

		if err := refreshLeaderboard(tx, m, height, false); err != nil {
			return err
		}

		p.TotalEvaluations++
		if err := tx.PutPlatform(p); err != nil {
			return err
		}
		updated, platform = m, p
		return nil
	})
	if err != nil {
		return err
	}

	l.log.Info(ctx, "evaluation recorded",
		logger.Uint64("model_id", modelID),
		logger.String("evaluator", evaluator),
		logger.Int("score", score),
		logger.Uint64("weight", weighted.Weight),
		logger.Uint64("average", updated.AverageRating),
	)
	l.publishTotals(platform)
	l.notify(ctx, updated)
	return nil
}
