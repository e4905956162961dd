package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/pkg/metrics"
)

const memoryBackend = "memory"

type evalKey struct {
	evaluator string
	modelID   uint64
}

// tables is the full ledger state held by MemoryStore.
type tables struct {
	models      map[uint64]model.Model
	byCategory  map[category.Category][]uint64
	evaluations map[evalKey]model.Evaluation
	stakes      map[string]model.StakeAccount
	reputation  map[string]model.ReputationProfile
	boards      map[category.Category]model.Leaderboard
	platform    *model.Platform
}

func newTables() *tables {
	return &tables{
		models:      make(map[uint64]model.Model),
		byCategory:  make(map[category.Category][]uint64),
		evaluations: make(map[evalKey]model.Evaluation),
		stakes:      make(map[string]model.StakeAccount),
		reputation:  make(map[string]model.ReputationProfile),
		boards:      make(map[category.Category]model.Leaderboard),
	}
}

// MemoryStore keeps the ledger in process memory. Writers are serialized and
// stage their changes in an overlay that is merged on success.
type MemoryStore struct {
	mu     sync.RWMutex
	base   *tables
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{base: newTables()}
}

// Backend implements Store.
func (s *MemoryStore) Backend() string { return memoryBackend }

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &memTx{base: s.base, staged: newTables(), writable: true}
	if err := fn(tx); err != nil {
		metrics.RecordStoreError(memoryBackend, "update")
		return err
	}
	tx.commit()

	metrics.RecordStoreTransaction(memoryBackend, "update", float64(time.Since(start).Microseconds())/1000)
	return nil
}

// View implements Store.
func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	err := fn(&memTx{base: s.base, staged: newTables()})
	metrics.RecordStoreTransaction(memoryBackend, "view", float64(time.Since(start).Microseconds())/1000)
	return err
}

// Close implements Store. Further transactions fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// memTx reads through staged writes to the base tables.
type memTx struct {
	base     *tables
	staged   *tables
	writable bool
}

func (t *memTx) commit() {
	for id, m := range t.staged.models {
		if _, ok := t.base.models[id]; !ok {
			t.base.byCategory[m.Category] = insertSorted(t.base.byCategory[m.Category], id)
		}
		t.base.models[id] = m
	}
	for k, e := range t.staged.evaluations {
		t.base.evaluations[k] = e
	}
	for p, a := range t.staged.stakes {
		t.base.stakes[p] = a
	}
	for p, r := range t.staged.reputation {
		t.base.reputation[p] = r
	}
	for c, l := range t.staged.boards {
		t.base.boards[c] = l
	}
	if t.staged.platform != nil {
		p := *t.staged.platform
		t.base.platform = &p
	}
}

func insertSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func (t *memTx) Model(id uint64) (model.Model, error) {
	if m, ok := t.staged.models[id]; ok {
		return m, nil
	}
	if m, ok := t.base.models[id]; ok {
		return m, nil
	}
	return model.Model{}, ErrNotFound
}

func (t *memTx) PutModel(m model.Model) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.models[m.ID] = m
	return nil
}

func (t *memTx) ModelsByCategory(c category.Category) ([]model.Model, error) {
	ids := append([]uint64{}, t.base.byCategory[c]...)
	for id, m := range t.staged.models {
		if _, ok := t.base.models[id]; !ok && m.Category == c {
			ids = insertSorted(ids, id)
		}
	}
	out := make([]model.Model, 0, len(ids))
	for _, id := range ids {
		m, err := t.Model(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *memTx) Models() ([]model.Model, error) {
	ids := make([]uint64, 0, len(t.base.models)+len(t.staged.models))
	for id := range t.base.models {
		ids = append(ids, id)
	}
	for id := range t.staged.models {
		if _, ok := t.base.models[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Model, 0, len(ids))
	for _, id := range ids {
		m, _ := t.Model(id)
		out = append(out, m)
	}
	return out, nil
}

func (t *memTx) Evaluation(evaluator string, modelID uint64) (model.Evaluation, error) {
	k := evalKey{evaluator: evaluator, modelID: modelID}
	if e, ok := t.staged.evaluations[k]; ok {
		return e, nil
	}
	if e, ok := t.base.evaluations[k]; ok {
		return e, nil
	}
	return model.Evaluation{}, ErrNotFound
}

func (t *memTx) PutEvaluation(e model.Evaluation) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.evaluations[evalKey{evaluator: e.Evaluator, modelID: e.ModelID}] = e
	return nil
}

func (t *memTx) StakeAccount(participant string) (model.StakeAccount, error) {
	if a, ok := t.staged.stakes[participant]; ok {
		return a.Clone(), nil
	}
	if a, ok := t.base.stakes[participant]; ok {
		return a.Clone(), nil
	}
	return model.StakeAccount{}, ErrNotFound
}

func (t *memTx) PutStakeAccount(a model.StakeAccount) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.stakes[a.Participant] = a.Clone()
	return nil
}

func (t *memTx) Reputation(participant string) (model.ReputationProfile, error) {
	if r, ok := t.staged.reputation[participant]; ok {
		return r, nil
	}
	if r, ok := t.base.reputation[participant]; ok {
		return r, nil
	}
	return model.ReputationProfile{}, ErrNotFound
}

func (t *memTx) PutReputation(r model.ReputationProfile) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.reputation[r.Participant] = r
	return nil
}

func (t *memTx) Leaderboard(c category.Category) (model.Leaderboard, error) {
	if l, ok := t.staged.boards[c]; ok {
		return l.Clone(), nil
	}
	if l, ok := t.base.boards[c]; ok {
		return l.Clone(), nil
	}
	return model.Leaderboard{}, ErrNotFound
}

func (t *memTx) PutLeaderboard(l model.Leaderboard) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.boards[l.Category] = l.Clone()
	return nil
}

func (t *memTx) Platform() (model.Platform, error) {
	if t.staged.platform != nil {
		return *t.staged.platform, nil
	}
	if t.base.platform != nil {
		return *t.base.platform, nil
	}
	return model.Platform{}, ErrNotFound
}

func (t *memTx) PutPlatform(p model.Platform) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.staged.platform = &p
	return nil
}
