// Package ledger is the model registry state machine. Every mutating
// operation validates first and then applies all of its writes in a single
// store transaction, or none of them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/scoring"
	"github.com/okian/modelrank/pkg/logger"
	"github.com/okian/modelrank/pkg/metrics"
)

// Defaults for tunables that are not set through options.
const (
	DefaultLockupPeriod = 100
	DefaultMinStake     = 1000
)

// Clock supplies the current height.
type Clock interface {
	CurrentHeight() uint64
}

// ErrInsufficientFunds is returned by ValueTransfer when the source account
// cannot cover a transfer.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ValueTransfer moves value between participants. Transfer is atomic.
type ValueTransfer interface {
	Balance(ctx context.Context, who string) (uint64, error)
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// ChangeHook receives every model an operation modified, after commit.
type ChangeHook func(ctx context.Context, changed model.Model)

// Construction errors.
var (
	ErrMissingOwner    = errors.New("ledger owner is required")
	ErrMissingEscrow   = errors.New("escrow account is required")
	ErrInvalidStake    = errors.New("minimum stake must be positive")
	ErrMissingStore    = errors.New("store is required")
	ErrMissingClock    = errors.New("clock is required")
	ErrMissingTransfer = errors.New("value transfer is required")
	ErrEscrowIsOwner   = errors.New("escrow account cannot own the platform")
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithOwner sets the administrator that may initialize the platform.
func WithOwner(owner string) Option {
	return func(l *Ledger) {
		l.owner = owner
	}
}

// WithEscrowAccount sets the account that holds stakes.
func WithEscrowAccount(account string) Option {
	return func(l *Ledger) {
		l.escrow = account
	}
}

// WithMinStake sets the amount every registration locks.
func WithMinStake(amount uint64) Option {
	return func(l *Ledger) {
		l.minStake = amount
	}
}

// WithLockupPeriod sets how many heights a stake stays locked. Zero keeps
// the default.
func WithLockupPeriod(period uint64) Option {
	return func(l *Ledger) {
		if period > 0 {
			l.lockup = period
		}
	}
}

// WithScorer replaces the reputation weighting rule.
func WithScorer(s scoring.Scorer) Option {
	return func(l *Ledger) {
		if s != nil {
			l.scorer = s
		}
	}
}

// WithLogger sets a custom logger for the ledger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithChangeHook registers a hook called after each committed model change.
func WithChangeHook(h ChangeHook) Option {
	return func(l *Ledger) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

// Ledger owns the registry, evaluation, stake, reputation and leaderboard
// tables. Mutations are serialized.
type Ledger struct {
	mu sync.Mutex

	store repository.Store
	clock Clock
	bank  ValueTransfer

	scorer   scoring.Scorer
	owner    string
	escrow   string
	minStake uint64
	lockup   uint64
	hooks    []ChangeHook
	log      logger.Logger
}

// New constructs a ledger over store.
func New(store repository.Store, clock Clock, bank ValueTransfer, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		clock:    clock,
		bank:     bank,
		scorer:   scoring.NewReputationScorer(),
		escrow:   "escrow",
		minStake: DefaultMinStake,
		lockup:   DefaultLockupPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}

	switch {
	case store == nil:
		return nil, ErrMissingStore
	case clock == nil:
		return nil, ErrMissingClock
	case bank == nil:
		return nil, ErrMissingTransfer
	case l.owner == "":
		return nil, ErrMissingOwner
	case l.escrow == "":
		return nil, ErrMissingEscrow
	case l.minStake == 0:
		return nil, ErrInvalidStake
	case l.owner == l.escrow:
		return nil, ErrEscrowIsOwner
	}
	if l.log == nil {
		l.log = logger.Get().Named("ledger")
	}
	return l, nil
}

// MinStake returns the amount locked by each registration.
func (l *Ledger) MinStake() uint64 { return l.minStake }

// LockupPeriod returns how many heights a stake stays locked.
func (l *Ledger) LockupPeriod() uint64 { return l.lockup }

// EscrowAccount returns the account holding stakes.
func (l *Ledger) EscrowAccount() string { return l.escrow }

// InitializePlatform creates the platform record and seeds every category
// leaderboard. Only the configured owner may call it, and only once.
func (l *Ledger) InitializePlatform(ctx context.Context, caller string) (err error) {
	const op = "initialize"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	height := l.clock.CurrentHeight()
	var platform model.Platform
	err = l.store.Update(ctx, func(tx repository.Tx) error {
		existing, err := tx.Platform()
		switch {
		case err == nil && existing.Initialized:
			return ErrAlreadyInitialized
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if caller != l.owner {
			return fmt.Errorf("%w: only the owner may initialize", ErrUnauthorized)
		}

		platform = model.Platform{
			Owner:         l.owner,
			Initialized:   true,
			InitializedAt: height,
			NextModelID:   1,
		}
		if err := tx.PutPlatform(platform); err != nil {
			return err
		}
		return seedLeaderboards(tx, height)
	})
	if err != nil {
		return err
	}

	l.log.Info(ctx, "platform initialized",
		logger.String("owner", platform.Owner),
		logger.Uint64("height", height),
	)
	l.publishTotals(platform)
	return nil
}

// TransferOwnership hands administration to newOwner. Owner only.
func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner string) (err error) {
	const op = "transfer_ownership"
	start := time.Now()
	defer func() { l.observe(ctx, op, start, err) }()

	if newOwner == "" {
		return ErrInvalidOwner
	}
	if err := l.checkParticipant(newOwner); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.store.Update(ctx, func(tx repository.Tx) error {
		p, err := loadPlatform(tx)
		if err != nil {
			return err
		}
		if caller != p.Owner {
			return fmt.Errorf("%w: only the owner may transfer ownership", ErrUnauthorized)
		}
		p.Owner = newOwner
		return tx.PutPlatform(p)
	})
	if err != nil {
		return err
	}
	l.log.Info(ctx, "ownership transferred",
		logger.String("from", caller),
		logger.String("to", newOwner),
	)
	return nil
}

// checkParticipant rejects the escrow account as an acting participant. It
// holds everyone's stakes and must never spend them or earn reputation.
func (l *Ledger) checkParticipant(who string) error {
	if who == l.escrow {
		return fmt.Errorf("%w: %s is the escrow account", ErrUnauthorized, who)
	}
	return nil
}

// loadPlatform returns the platform record or ErrNotInitialized.
func loadPlatform(tx repository.Tx) (model.Platform, error) {
	p, err := tx.Platform()
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.Initialized) {
		return model.Platform{}, ErrNotInitialized
	}
	return p, err
}

// observe records metrics and logs for a finished operation.
func (l *Ledger) observe(ctx context.Context, op string, start time.Time, err error) {
	latency := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordLedgerOperationLatency(op, latency)

	if err == nil {
		metrics.RecordLedgerOperation(op, "ok")
		return
	}

	code := CodeOf(err)
	metrics.RecordLedgerOperation(op, code)
	metrics.RecordErrorByComponent("ledger", code)
	metrics.RecordErrorLatency("ledger", code, latency)

	if KindOf(err) == KindUnknown {
		l.log.Error(ctx, "ledger operation failed", logger.String("op", op), logger.Error(err))
		return
	}
	l.log.Debug(ctx, "ledger operation rejected", logger.String("op", op), logger.String("code", code), logger.Error(err))
}

func (l *Ledger) publishTotals(p model.Platform) {
	metrics.UpdatePlatformTotals(p.TotalModels, p.ActiveModels, p.TotalEvaluations, p.TotalStaked)
}

func (l *Ledger) notify(ctx context.Context, m model.Model) {
	for _, h := range l.hooks {
		h(ctx, m)
	}
}
