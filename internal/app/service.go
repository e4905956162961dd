// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/modelrank/internal/adapters/clock"
	"github.com/okian/modelrank/internal/adapters/escrow"
	"github.com/okian/modelrank/internal/adapters/ranking"
	"github.com/okian/modelrank/internal/adapters/repository"
	"github.com/okian/modelrank/internal/domain/dedupe"
	"github.com/okian/modelrank/internal/domain/ledger"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
	"github.com/okian/modelrank/pkg/logger"
	"github.com/okian/modelrank/pkg/metrics"
)

// Store backends accepted by WithStore.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

const systemSampleInterval = 15 * time.Second

// Service implements the API dependencies for the model registry.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	bank    *escrow.Bank
	clock   ledger.Clock
	ledger  *ledger.Ledger
	index   *ranking.Index
	deduper dedupe.Deduper

	// Configuration
	storeKind      string
	dataDir        string
	syncWrites     bool
	gcInterval     time.Duration
	owner          string
	escrowAccount  string
	minStake       uint64
	lockupPeriod   uint64
	blockInterval  time.Duration
	genesis        map[string]uint64
	faucetAmount   uint64
	maxLimit       int
	idempotencyMax int
	idempotencyTTL time.Duration

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore selects the ledger backend and, for badger, its directory.
func WithStore(kind, dataDir string) Option {
	return func(s *Service) {
		s.storeKind = kind
		s.dataDir = dataDir
	}
}

// WithBadgerTuning sets badger durability and value log GC cadence.
func WithBadgerTuning(syncWrites bool, gcInterval time.Duration) Option {
	return func(s *Service) {
		s.syncWrites = syncWrites
		s.gcInterval = gcInterval
	}
}

// WithOwner sets the platform administrator.
func WithOwner(owner string) Option {
	return func(s *Service) {
		s.owner = owner
	}
}

// WithEscrowAccount sets the account that holds stakes.
func WithEscrowAccount(account string) Option {
	return func(s *Service) {
		s.escrowAccount = account
	}
}

// WithMinStake sets the amount locked by each registration.
func WithMinStake(amount uint64) Option {
	return func(s *Service) {
		if amount > 0 {
			s.minStake = amount
		}
	}
}

// WithLockupPeriod sets the number of heights a stake stays locked.
func WithLockupPeriod(period uint64) Option {
	return func(s *Service) {
		if period > 0 {
			s.lockupPeriod = period
		}
	}
}

// WithBlockInterval sets the wall time per height for the default clock.
func WithBlockInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.blockInterval = d
		}
	}
}

// WithClock replaces the height source.
func WithClock(c ledger.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithGenesisBalances seeds the escrow bank.
func WithGenesisBalances(balances map[string]uint64) Option {
	return func(s *Service) {
		s.genesis = balances
	}
}

// WithFaucetAmount enables the development faucet.
func WithFaucetAmount(amount uint64) Option {
	return func(s *Service) {
		s.faucetAmount = amount
	}
}

// WithMaxLeaderboardLimit caps TopModels.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// WithIdempotency bounds the idempotency key cache.
func WithIdempotency(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.idempotencyMax = size
		s.idempotencyTTL = ttl
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeKind:      StoreMemory,
		syncWrites:     true,
		gcInterval:     5 * time.Minute,
		owner:          "admin",
		escrowAccount:  "escrow",
		minStake:       ledger.DefaultMinStake,
		lockupPeriod:   ledger.DefaultLockupPeriod,
		blockInterval:  time.Second,
		maxLimit:       100,
		idempotencyMax: 100_000,
		idempotencyTTL: 24 * time.Hour,
		stopCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store, builds the ledger and rebuilds the ranking index.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting model registry service...")

	store, err := s.openStore()
	if err != nil {
		return err
	}

	last, err := ledger.LastHeight(ctx, store)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("read persisted height: %w", err)
	}
	s.resumeClock(last)

	bankOpts := []escrow.Option{escrow.WithGenesis(s.genesis)}
	if journal, ok := store.(escrow.Journal); ok {
		bankOpts = append(bankOpts, escrow.WithJournal(journal))
	}
	s.bank = escrow.NewBank(bankOpts...)
	if err := s.bank.Restore(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("restore balances: %w", err)
	}
	s.index = ranking.NewIndex(ranking.WithMaxLimit(s.maxLimit))
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.idempotencyMax),
		dedupe.WithTTL(s.idempotencyTTL),
	)

	l, err := ledger.New(store, s.clock, s.bank,
		ledger.WithOwner(s.owner),
		ledger.WithEscrowAccount(s.escrowAccount),
		ledger.WithMinStake(s.minStake),
		ledger.WithLockupPeriod(s.lockupPeriod),
		ledger.WithLogger(s.logger.Named("ledger")),
		ledger.WithChangeHook(s.index.Upsert),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build ledger: %w", err)
	}

	models, err := l.Models(ctx)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("load models: %w", err)
	}
	s.index.Rebuild(ctx, models)

	if p, err := l.GetPlatformStats(ctx); err == nil {
		metrics.UpdatePlatformTotals(p.TotalModels, p.ActiveModels, p.TotalEvaluations, p.TotalStaked)
		if held, _ := s.bank.Balance(ctx, s.escrowAccount); held < p.TotalStaked {
			s.logger.Warn(ctx, "escrow holds less than the staked total",
				logger.Uint64("escrow", held),
				logger.Uint64("staked", p.TotalStaked),
			)
		}
	}

	s.store = store
	s.ledger = l
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sampleSystem()

	s.started = true
	s.logger.Info(ctx, "model registry service started",
		logger.String("store", store.Backend()),
		logger.Int("models", len(models)),
		logger.Int("ranked", s.index.Count(ctx)),
		logger.Uint64("height", s.clock.CurrentHeight()),
	)
	return nil
}

// resumeClock keeps height from running behind the highest persisted height.
func (s *Service) resumeClock(last uint64) {
	if s.clock == nil {
		s.clock = clock.NewTicker(s.blockInterval, clock.WithGenesisHeight(last))
		return
	}
	if c, ok := s.clock.(interface{ Set(uint64) }); ok {
		c.Set(last)
	}
}

func (s *Service) openStore() (repository.Store, error) {
	switch s.storeKind {
	case StoreMemory:
		return repository.NewMemoryStore(), nil
	case StoreBadger:
		return repository.NewBadgerStore(s.dataDir,
			repository.WithSyncWrites(s.syncWrites),
			repository.WithGCInterval(s.gcInterval),
			repository.WithLogger(s.logger.Named("badger")),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, s.storeKind)
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping model registry service...")
	close(s.stopCh)
	s.wg.Wait()

	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "model registry service stopped")
}

func (s *Service) sampleSystem() {
	defer s.wg.Done()
	t := time.NewTicker(systemSampleInterval)
	defer t.Stop()

	var lastPause uint64
	for {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		if ms.PauseTotalNs > lastPause {
			metrics.RecordSystemGCPauseTime(float64(ms.PauseTotalNs-lastPause) / 1e6)
			lastPause = ms.PauseTotalNs
		}

		select {
		case <-s.stopCh:
			return
		case <-t.C:
		}
	}
}

func (s *Service) core() (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.ledger, nil
}

// SeenAndRecord claims an idempotency key.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return seen
}

// Unrecord releases an idempotency key.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of held idempotency keys.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// InitializePlatform delegates to the ledger.
func (s *Service) InitializePlatform(ctx context.Context, caller string) error {
	l, err := s.core()
	if err != nil {
		return err
	}
	return l.InitializePlatform(ctx, caller)
}

// TransferOwnership delegates to the ledger.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	l, err := s.core()
	if err != nil {
		return err
	}
	return l.TransferOwnership(ctx, caller, newOwner)
}

// RegisterModel delegates to the ledger.
func (s *Service) RegisterModel(ctx context.Context, caller string, req types.RegisterModelRequest) (uint64, error) {
	l, err := s.core()
	if err != nil {
		return 0, err
	}
	return l.RegisterModel(ctx, caller, ledger.RegisterRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ContentHash: req.ContentHash,
	})
}

// SubmitEvaluation delegates to the ledger.
func (s *Service) SubmitEvaluation(ctx context.Context, evaluator string, modelID uint64, score int, comment *string) error {
	l, err := s.core()
	if err != nil {
		return err
	}
	return l.SubmitEvaluation(ctx, evaluator, modelID, score, comment)
}

// WithdrawModelStake delegates to the ledger.
func (s *Service) WithdrawModelStake(ctx context.Context, caller string, modelID uint64) error {
	l, err := s.core()
	if err != nil {
		return err
	}
	return l.WithdrawModelStake(ctx, caller, modelID)
}

// DeactivateModel delegates to the ledger.
func (s *Service) DeactivateModel(ctx context.Context, caller string, modelID uint64) error {
	l, err := s.core()
	if err != nil {
		return err
	}
	return l.DeactivateModel(ctx, caller, modelID)
}

// GetModel delegates to the ledger.
func (s *Service) GetModel(ctx context.Context, id uint64) (model.Model, error) {
	l, err := s.core()
	if err != nil {
		return model.Model{}, err
	}
	return l.GetModel(ctx, id)
}

// IsModelActive delegates to the ledger.
func (s *Service) IsModelActive(ctx context.Context, id uint64) (types.Activity, error) {
	l, err := s.core()
	if err != nil {
		return types.Activity{}, err
	}
	active, err := l.IsModelActive(ctx, id)
	return types.Activity{ModelID: id, Active: active}, err
}

// GetEvaluation delegates to the ledger.
func (s *Service) GetEvaluation(ctx context.Context, evaluator string, modelID uint64) (model.Evaluation, error) {
	l, err := s.core()
	if err != nil {
		return model.Evaluation{}, err
	}
	return l.GetEvaluation(ctx, evaluator, modelID)
}

// GetReputation delegates to the ledger.
func (s *Service) GetReputation(ctx context.Context, participant string) (model.ReputationProfile, error) {
	l, err := s.core()
	if err != nil {
		return model.ReputationProfile{}, err
	}
	return l.GetReputation(ctx, participant)
}

// GetStakeAccount delegates to the ledger.
func (s *Service) GetStakeAccount(ctx context.Context, participant string) (model.StakeAccount, error) {
	l, err := s.core()
	if err != nil {
		return model.StakeAccount{}, err
	}
	return l.GetStakeAccount(ctx, participant)
}

// GetStakeBalance delegates to the ledger.
func (s *Service) GetStakeBalance(ctx context.Context, participant string) (types.StakeBalance, error) {
	l, err := s.core()
	if err != nil {
		return types.StakeBalance{}, err
	}
	total, err := l.GetStakeBalance(ctx, participant)
	return types.StakeBalance{Participant: participant, TotalStaked: total}, err
}

// GetPlatformStats delegates to the ledger.
func (s *Service) GetPlatformStats(ctx context.Context) (model.Platform, error) {
	l, err := s.core()
	if err != nil {
		return model.Platform{}, err
	}
	return l.GetPlatformStats(ctx)
}

// IsCategoryValid delegates to the ledger.
func (s *Service) IsCategoryValid(name string) bool {
	l, err := s.core()
	if err != nil {
		return false
	}
	return l.IsCategoryValid(name)
}

// ComputeWeightedScore applies the weighting rule without recording anything.
func (s *Service) ComputeWeightedScore(score int, reputation uint64) (types.WeightedScore, error) {
	l, err := s.core()
	if err != nil {
		return types.WeightedScore{}, err
	}
	weighted, err := l.ComputeWeightedScore(score, reputation)
	if err != nil {
		return types.WeightedScore{}, err
	}
	return types.WeightedScore{
		Score:         score,
		Reputation:    reputation,
		Weight:        weighted / uint64(score),
		WeightedScore: weighted,
	}, nil
}

// ListModelsInCategory delegates to the ledger.
func (s *Service) ListModelsInCategory(ctx context.Context, name string) ([]model.Model, error) {
	l, err := s.core()
	if err != nil {
		return nil, err
	}
	return l.ListModelsInCategory(ctx, name)
}

// Leaderboard returns a category board with its ranked ids resolved.
func (s *Service) Leaderboard(ctx context.Context, name string) (types.Leaderboard, error) {
	l, err := s.core()
	if err != nil {
		return types.Leaderboard{}, err
	}
	board, ranked, err := l.GetRankedModels(ctx, name)
	if err != nil {
		return types.Leaderboard{}, err
	}
	out := types.Leaderboard{
		Category:    board.Category.String(),
		Entries:     make([]types.Entry, 0, len(ranked)),
		LastUpdated: board.LastUpdated,
		TotalModels: board.TotalModels,
	}
	for i, m := range ranked {
		out.Entries = append(out.Entries, types.EntryFromModel(i+1, m))
	}
	return out, nil
}

// ModelRank returns the model's position among active models.
func (s *Service) ModelRank(ctx context.Context, id uint64) (types.ModelRank, error) {
	l, err := s.core()
	if err != nil {
		return types.ModelRank{}, err
	}
	pos, err := s.index.Rank(ctx, id)
	if errors.Is(err, ranking.ErrNotFound) {
		// Distinguish unknown models from known but unranked ones.
		if _, gerr := l.GetModel(ctx, id); gerr != nil {
			return types.ModelRank{}, gerr
		}
	}
	if err != nil {
		return types.ModelRank{}, err
	}
	return types.ModelRank{
		ModelID:      id,
		Category:     pos.Global.Category.String(),
		GlobalRank:   pos.Global.Rank,
		GlobalSize:   pos.GlobalSize,
		CategoryRank: pos.Category.Rank,
		CategorySize: pos.CategorySize,
	}, nil
}

// TopModels returns the best n active models across every category.
func (s *Service) TopModels(ctx context.Context, n int) ([]types.Entry, error) {
	l, err := s.core()
	if err != nil {
		return nil, err
	}
	ranked, err := s.index.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(ranked))
	for i, e := range ranked {
		out[i] = types.Entry{
			Rank:          e.Rank,
			ModelID:       e.ModelID,
			Category:      e.Category.String(),
			AverageRating: e.AverageRating,
			VoteCount:     e.VoteCount,
		}
		if m, err := l.GetModel(ctx, e.ModelID); err == nil {
			out[i].Name = m.Name
		}
	}
	return out, nil
}

// Balance returns the spendable balance held by who.
func (s *Service) Balance(ctx context.Context, who string) (uint64, error) {
	if _, err := s.core(); err != nil {
		return 0, err
	}
	return s.bank.Balance(ctx, who)
}

// Faucet credits who with the configured amount and returns the new balance.
func (s *Service) Faucet(ctx context.Context, who string) (uint64, error) {
	if _, err := s.core(); err != nil {
		return 0, err
	}
	if s.faucetAmount == 0 {
		return 0, ErrFaucetDisabled
	}
	if who == s.escrowAccount {
		return 0, fmt.Errorf("%w: escrow account", ErrFaucetDisabled)
	}
	if err := s.bank.Mint(ctx, who, s.faucetAmount); err != nil {
		return 0, err
	}
	s.logger.Debug(ctx, "faucet credited", logger.String("who", who), logger.Uint64("amount", s.faucetAmount))
	return s.bank.Balance(ctx, who)
}

// CurrentHeight returns the ledger height.
func (s *Service) CurrentHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clock == nil {
		return 0
	}
	return s.clock.CurrentHeight()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
		"store":   s.storeKind,
	}

	if s.started {
		stats["height"] = s.clock.CurrentHeight()
		stats["rankedModels"] = s.index.Count(ctx)
		stats["idempotencyKeys"] = s.deduper.Size()
		if p, err := s.ledger.GetPlatformStats(ctx); err == nil {
			stats["initialized"] = p.Initialized
			stats["totalModels"] = p.TotalModels
			stats["activeModels"] = p.ActiveModels
			stats["totalEvaluations"] = p.TotalEvaluations
			stats["totalStaked"] = p.TotalStaked
		}
		metrics.UpdateRankingIndexSize(s.index.Count(ctx))
	}

	return stats
}
