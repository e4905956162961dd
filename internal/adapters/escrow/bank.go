// Package escrow moves value between participants and the platform escrow account.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/modelrank/internal/domain/ledger"
)

// Sentinel kinds for escrow errors.
var (
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
	ErrInvalidAmount     = errors.New("transfer amount must be positive")
	ErrInvalidAccount    = errors.New("account identity is empty")
)

// Journal persists balances across restarts. SaveBalances writes the given
// accounts atomically; LoadBalances reports ok=false until the first save.
type Journal interface {
	LoadBalances(ctx context.Context) (balances map[string]uint64, ok bool, err error)
	SaveBalances(ctx context.Context, changed map[string]uint64) error
}

// Option applies a configuration option to the Bank.
type Option func(*Bank)

// WithGenesis seeds starting balances. With a journal, genesis only applies
// the first time the journal is restored.
func WithGenesis(balances map[string]uint64) Option {
	return func(b *Bank) {
		for who, amount := range balances {
			b.balances[who] += amount
		}
	}
}

// WithJournal makes every balance change durable.
func WithJournal(j Journal) Option {
	return func(b *Bank) {
		b.journal = j
	}
}

// Bank is an in-process balance sheet. Every transfer is atomic.
type Bank struct {
	mu       sync.Mutex
	balances map[string]uint64
	journal  Journal
}

// NewBank creates a bank with configuration options.
func NewBank(opts ...Option) *Bank {
	b := &Bank{balances: make(map[string]uint64)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Restore replaces the balance sheet with the journal's contents. An empty
// journal is seeded with the genesis balances instead. Without a journal it
// does nothing.
func (b *Bank) Restore(ctx context.Context) error {
	if b.journal == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	saved, ok, err := b.journal.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	if ok {
		b.balances = make(map[string]uint64, len(saved))
		for who, amount := range saved {
			b.balances[who] = amount
		}
		return nil
	}
	genesis := make(map[string]uint64, len(b.balances))
	for who, amount := range b.balances {
		genesis[who] = amount
	}
	if err := b.journal.SaveBalances(ctx, genesis); err != nil {
		return fmt.Errorf("save genesis balances: %w", err)
	}
	return nil
}

// Balance returns the spendable amount held by who. Unknown accounts hold zero.
func (b *Bank) Balance(ctx context.Context, who string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[who], nil
}

// Transfer moves amount from one account to another, or does nothing.
func (b *Bank) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == "" || to == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	have := b.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, have, amount)
	}
	if from == to {
		return nil
	}
	next := map[string]uint64{
		from: have - amount,
		to:   b.balances[to] + amount,
	}
	return b.apply(ctx, next)
}

// Mint credits who out of thin air. Used by development tooling.
func (b *Bank) Mint(ctx context.Context, who string, amount uint64) error {
	if who == "" {
		return ErrInvalidAccount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apply(ctx, map[string]uint64{who: b.balances[who] + amount})
}

// apply journals next and then installs it. Callers hold mu.
func (b *Bank) apply(ctx context.Context, next map[string]uint64) error {
	if b.journal != nil {
		if err := b.journal.SaveBalances(context.WithoutCancel(ctx), next); err != nil {
			return fmt.Errorf("journal balances: %w", err)
		}
	}
	for who, amount := range next {
		b.balances[who] = amount
	}
	return nil
}
