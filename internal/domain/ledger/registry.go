package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/pkg/logger"
	"github.com/okian/modelrank/pkg/metrics"
)

// RegisterRequest carries the caller-supplied fields of a new model.
type RegisterRequest struct {
	Name        string
	Description string
	Category    string
	ContentHash string
}

func (r RegisterRequest) validate() error {
	if err := checkLength("name", r.Name, 1, MaxNameLength); err != nil {
		return err
	}
	if err := checkLength("description", r.Description, 1, MaxDescriptionLength); err != nil {
		return err
	}
	return checkLength("content hash", r.ContentHash, ContentHashLength, ContentHashLength)
}

// RegisterModel locks the minimum stake from caller into escrow and records a
// new active model. It returns the assigned identifier.
func (l *Ledger) RegisterModel(ctx context.Context, caller string, req RegisterRequest) (id uint64, err error) {
	const op = "register"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	if err := l.checkParticipant(caller); err != nil {
		return 0, err
	}
	cat, err := parseCategory(req.Category)
	if err != nil {
		return 0, err
	}
	if err := req.validate(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	height := l.clock.CurrentHeight()
	var (
		created     model.Model
		platform    model.Platform
		transferred bool
	)
	err = l.store.Update(ctx, func(tx repository.Tx) error {
		p, err := loadPlatform(tx)
		if err != nil {
			return err
		}

		balance, err := l.bank.Balance(ctx, caller)
		if err != nil {
			return err
		}
		if balance < l.minStake {
			return fmt.Errorf("%w: %s holds %d, stake is %d", ErrInsufficientBalance, caller, balance, l.minStake)
		}

		acct, err := loadStakeAccount(tx, caller)
		if err != nil {
			return err
		}
		if _, err := loadLeaderboard(tx, cat); err != nil {
			return err
		}

		id := p.NextModelID
		if err := deposit(&acct, l.minStake, id); err != nil {
			return err
		}

		m := model.Model{
			ID:           id,
			Name:         req.Name,
			Description:  req.Description,
			Creator:      caller,
			Category:     cat,
			ContentHash:  req.ContentHash,
			StakeAmount:  l.minStake,
			RegisteredAt: height,
			Active:       true,
			LastUpdated:  height,
		}
		if err := tx.PutModel(m); err != nil {
			return err
		}
		if err := tx.PutStakeAccount(acct); err != nil {
			return err
		}

		rep, err := loadReputation(tx, caller)
		if err != nil {
			return err
		}
		rep.AwardRegistration(height)
		if err := tx.PutReputation(rep); err != nil {
			return err
		}

		if err := refreshLeaderboard(tx, m, height, true); err != nil {
			return err
		}

		p.NextModelID++
		p.TotalModels++
		p.ActiveModels++
		p.TotalStaked += l.minStake
		if err := tx.PutPlatform(p); err != nil {
			return err
		}

		if err := l.bank.Transfer(ctx, caller, l.escrow, l.minStake); err != nil {
			metrics.RecordEscrowTransfer("deposit", "failed")
			if errors.Is(err, ErrInsufficientFunds) {
				return fmt.Errorf("%w: escrow transfer: %v", ErrInsufficientBalance, err)
			}
			return fmt.Errorf("escrow deposit: %w", err)
		}
		metrics.RecordEscrowTransfer("deposit", "ok")
		transferred = true
		created, platform = m, p
		return nil
	})
	if err != nil {
		if transferred {
			l.compensate(ctx, l.escrow, caller, l.minStake, err)
		}
		return 0, err
	}

	l.log.Info(ctx, "model registered",
		logger.Uint64("model_id", created.ID),
		logger.String("creator", caller),
		logger.String("category", created.Category.String()),
		logger.Uint64("stake", created.StakeAmount),
		logger.Uint64("height", height),
	)
	l.publishTotals(platform)
	l.notify(ctx, created)
	return created.ID, nil
}

// DeactivateModel is the administrator's kill switch. Repeating it succeeds
// and only refreshes the last-update height.
func (l *Ledger) DeactivateModel(ctx context.Context, caller string, modelID uint64) (err error) {
	const op = "deactivate"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	height := l.clock.CurrentHeight()
	var (
		updated  model.Model
		platform model.Platform
		changed  bool
	)
	err = l.store.Update(ctx, func(tx repository.Tx) error {
		p, err := loadPlatform(tx)
		if err != nil {
			return err
		}
		if caller != p.Owner {
			return fmt.Errorf("%w: only the owner may deactivate models", ErrUnauthorized)
		}
		m, err := loadModel(tx, modelID)
		if err != nil {
			return err
		}

		changed = m.Active
		m.Deactivate(height)
		if err := tx.PutModel(m); err != nil {
			return err
		}
		if changed {
			if err := refreshLeaderboard(tx, m, height, false); err != nil {
				return err
			}
			p.ActiveModels--
			if err := tx.PutPlatform(p); err != nil {
				return err
			}
		}
		updated, platform = m, p
		return nil
	})
	if err != nil {
		return err
	}

	if !changed {
		l.log.Debug(ctx, "model already inactive", logger.Uint64("model_id", modelID))
		return nil
	}
	l.log.Info(ctx, "model deactivated",
		logger.Uint64("model_id", modelID),
		logger.String("by", caller),
		logger.Uint64("height", height),
	)
	l.publishTotals(platform)
	l.notify(ctx, updated)
	return nil
}

func loadModel(tx repository.Tx, id uint64) (model.Model, error) {
	m, err := tx.Model(id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Model{}, fmt.Errorf("%w: %d", ErrModelNotFound, id)
	}
	return m, err
}
