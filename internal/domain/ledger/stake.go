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

// loadStakeAccount returns the participant's account, or a fresh one.
func loadStakeAccount(tx repository.Tx, participant string) (model.StakeAccount, error) {
	a, err := tx.StakeAccount(participant)
	if errors.Is(err, repository.ErrNotFound) {
		return model.StakeAccount{Participant: participant}, nil
	}
	return a, err
}

func deposit(acct *model.StakeAccount, amount, modelID uint64) error {
	if err := acct.Deposit(amount, modelID); err != nil {
		return fmt.Errorf("%w: %s already staked %d models", ErrCapacityExceeded, acct.Participant, len(acct.StakedModels))
	}
	return nil
}

// withdrawStake decreases the participant's total. The account must exist.
func withdrawStake(tx repository.Tx, participant string, amount uint64) (model.StakeAccount, error) {
	acct, err := tx.StakeAccount(participant)
	if errors.Is(err, repository.ErrNotFound) {
		return model.StakeAccount{}, fmt.Errorf("%w: %s has no stake account", ErrInsufficientStake, participant)
	}
	if err != nil {
		return model.StakeAccount{}, err
	}
	if err := acct.Withdraw(amount); err != nil {
		return model.StakeAccount{}, fmt.Errorf("%w: %s holds %d, asked %d", ErrInsufficientStake, participant, acct.TotalStaked, amount)
	}
	return acct, nil
}

// WithdrawModelStake refunds a model's stake to its creator once the lockup
// has elapsed and permanently deactivates the model.
func (l *Ledger) WithdrawModelStake(ctx context.Context, caller string, modelID uint64) (err error) {
	const op = "withdraw"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	height := l.clock.CurrentHeight()
	var (
		updated  model.Model
		platform model.Platform
		refunded bool
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
		if caller != m.Creator {
			return fmt.Errorf("%w: only the creator may withdraw model %d", ErrUnauthorized, modelID)
		}
		if m.StakeWithdrawn {
			return fmt.Errorf("%w: model %d", ErrStakeWithdrawn, modelID)
		}
		if height <= m.RegisteredAt+l.lockup {
			return fmt.Errorf("%w: unlocks after height %d, now %d", ErrWithdrawalTooEarly, m.RegisteredAt+l.lockup, height)
		}

		acct, err := withdrawStake(tx, caller, m.StakeAmount)
		if err != nil {
			return err
		}

		wasActive := m.Active
		m.Deactivate(height)
		m.StakeWithdrawn = true

		if err := tx.PutStakeAccount(acct); err != nil {
			return err
		}
		if err := tx.PutModel(m); err != nil {
			return err
		}
		if err := refreshLeaderboard(tx, m, height, false); err != nil {
			return err
		}

		if wasActive {
			p.ActiveModels--
		}
		p.TotalStaked -= m.StakeAmount
		if err := tx.PutPlatform(p); err != nil {
			return err
		}

		if err := l.bank.Transfer(ctx, l.escrow, caller, m.StakeAmount); err != nil {
			metrics.RecordEscrowTransfer("refund", "failed")
			return fmt.Errorf("refund stake of model %d: %w", modelID, err)
		}
		metrics.RecordEscrowTransfer("refund", "ok")
		refunded = true
		updated, platform = m, p
		return nil
	})
	if err != nil {
		if refunded {
			l.compensate(ctx, caller, l.escrow, updated.StakeAmount, err)
		}
		return err
	}

	l.log.Info(ctx, "stake withdrawn",
		logger.Uint64("model_id", modelID),
		logger.String("creator", caller),
		logger.Uint64("amount", updated.StakeAmount),
		logger.Uint64("height", height),
	)
	l.publishTotals(platform)
	l.notify(ctx, updated)
	return nil
}

// compensate reverses a transfer whose ledger transaction failed to commit.
func (l *Ledger) compensate(ctx context.Context, from, to string, amount uint64, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := l.bank.Transfer(ctx, from, to, amount); err != nil {
		metrics.RecordEscrowTransfer("compensate", "failed")
		l.log.Error(ctx, "compensating transfer failed",
			logger.String("from", from),
			logger.String("to", to),
			logger.Uint64("amount", amount),
			logger.Any("cause", cause),
			logger.Error(err),
		)
		return
	}
	metrics.RecordEscrowTransfer("compensate", "ok")
	l.log.Warn(ctx, "transfer reversed after failed commit",
		logger.String("from", from),
		logger.String("to", to),
		logger.Uint64("amount", amount),
		logger.Error(cause),
	)
}
