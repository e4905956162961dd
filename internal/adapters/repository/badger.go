package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/pkg/logger"
	"github.com/okian/modelrank/pkg/metrics"
)

const badgerBackend = "badger"

// Key layout. Numeric ids are zero padded so prefix iteration yields id order.
const (
	prefixModel    = "model/"
	prefixCategory = "catidx/"
	prefixEval     = "eval/"
	prefixStake    = "stake/"
	prefixRep      = "rep/"
	prefixBoard    = "board/"
	prefixBalance  = "balance/"
	keyPlatform    = "platform"
	keyBankSeeded  = "bank-seeded"
)

func modelKey(id uint64) []byte { return []byte(fmt.Sprintf("%s%020d", prefixModel, id)) }

func categoryIndexPrefix(c category.Category) []byte {
	return []byte(prefixCategory + c.String() + "/")
}

func categoryIndexKey(c category.Category, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixCategory, c.String(), id))
}

// The model id comes first so evaluator names may contain any byte.
func evaluationKey(evaluator string, modelID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", prefixEval, modelID, evaluator))
}

func stakeKey(p string) []byte            { return []byte(prefixStake + p) }
func repKey(p string) []byte              { return []byte(prefixRep + p) }
func boardKey(c category.Category) []byte { return []byte(prefixBoard + c.String()) }
func balanceKey(who string) []byte        { return []byte(prefixBalance + who) }

// BadgerStore persists the ledger in a badger database. Values are JSON.
type BadgerStore struct {
	db             *badger.DB
	path           string
	inMemory       bool
	syncWrites     bool
	gcInterval     time.Duration
	gcDiscardRatio float64
	log            logger.Logger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string, opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{
		path:           path,
		syncWrites:     true,
		gcInterval:     5 * time.Minute,
		gcDiscardRatio: 0.5,
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var bopts badger.Options
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, ErrPathRequired
		}
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		bopts = badger.DefaultOptions(path)
	}
	bopts = bopts.WithSyncWrites(s.syncWrites).WithNumVersionsToKeep(1)
	if s.log != nil {
		bopts = bopts.WithLogger(&badgerLogger{log: s.log})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	s.db = db

	if s.gcInterval > 0 && !s.inMemory {
		s.wg.Add(1)
		go s.runGC()
	}
	return s, nil
}

// Backend implements Store.
func (s *BadgerStore) Backend() string { return badgerBackend }

// Update implements Store.
func (s *BadgerStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, writable: true})
	})
	if err != nil {
		metrics.RecordStoreError(badgerBackend, "update")
		return translate(err)
	}
	metrics.RecordStoreTransaction(badgerBackend, "update", float64(time.Since(start).Microseconds())/1000)
	return nil
}

// View implements Store.
func (s *BadgerStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
	metrics.RecordStoreTransaction(badgerBackend, "view", float64(time.Since(start).Microseconds())/1000)
	return translate(err)
}

func translate(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// Close stops garbage collection and closes the database. Safe to call twice.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// LoadBalances returns every persisted account balance. ok is false until
// SaveBalances has run once.
func (s *BadgerStore) LoadBalances(ctx context.Context) (map[string]uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	out := make(map[string]uint64)
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyBankSeeded))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		ok = true

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBalance)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			who := string(item.Key()[len(prefixBalance):])
			if err := item.Value(func(val []byte) error {
				amount, err := strconv.ParseUint(string(val), 10, 64)
				out[who] = amount
				return err
			}); err != nil {
				return fmt.Errorf("decode balance of %s: %w", who, err)
			}
		}
		return nil
	})
	return out, ok, translate(err)
}

// SaveBalances writes the changed balances in one transaction.
func (s *BadgerStore) SaveBalances(ctx context.Context, changed map[string]uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		for who, amount := range changed {
			if err := txn.Set(balanceKey(who), []byte(strconv.FormatUint(amount, 10))); err != nil {
				return err
			}
		}
		return txn.Set([]byte(keyBankSeeded), []byte{1})
	})
	if err != nil {
		metrics.RecordStoreError(badgerBackend, "balances")
		return translate(err)
	}
	metrics.RecordStoreTransaction(badgerBackend, "balances", float64(time.Since(start).Microseconds())/1000)
	return nil
}

func (s *BadgerStore) runGC() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing worth collecting.
			if err := s.db.RunValueLogGC(s.gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.log != nil {
				s.log.Warn(context.Background(), "badger value log gc failed", logger.Error(err))
			}
		}
	}
}

// badgerLogger adapts logger.Logger to badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// badgerTx adapts a badger transaction to Tx.
type badgerTx struct {
	txn      *badger.Txn
	writable bool
}

func (t *badgerTx) get(key []byte, out interface{}) error {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func (t *badgerTx) put(key []byte, v interface{}) error {
	if !t.writable {
		return ErrReadOnly
	}
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.txn.Set(key, val)
}

func (t *badgerTx) Model(id uint64) (model.Model, error) {
	var m model.Model
	err := t.get(modelKey(id), &m)
	return m, err
}

func (t *badgerTx) PutModel(m model.Model) error {
	if !t.writable {
		return ErrReadOnly
	}
	if err := t.txn.Set(categoryIndexKey(m.Category, m.ID), []byte{}); err != nil {
		return err
	}
	return t.put(modelKey(m.ID), m)
}

func (t *badgerTx) ModelsByCategory(c category.Category) ([]model.Model, error) {
	prefix := categoryIndexPrefix(c)
	it := t.txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()

	var ids []uint64
	for it.Rewind(); it.Valid(); it.Next() {
		id, err := strconv.ParseUint(string(it.Item().Key()[len(prefix):]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode category index key: %w", err)
		}
		ids = append(ids, id)
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

func (t *badgerTx) Models() ([]model.Model, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixModel)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []model.Model
	for it.Rewind(); it.Valid(); it.Next() {
		var m model.Model
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *badgerTx) Evaluation(evaluator string, modelID uint64) (model.Evaluation, error) {
	var e model.Evaluation
	err := t.get(evaluationKey(evaluator, modelID), &e)
	return e, err
}

func (t *badgerTx) PutEvaluation(e model.Evaluation) error {
	return t.put(evaluationKey(e.Evaluator, e.ModelID), e)
}

func (t *badgerTx) StakeAccount(participant string) (model.StakeAccount, error) {
	var a model.StakeAccount
	err := t.get(stakeKey(participant), &a)
	return a, err
}

func (t *badgerTx) PutStakeAccount(a model.StakeAccount) error {
	return t.put(stakeKey(a.Participant), a)
}

func (t *badgerTx) Reputation(participant string) (model.ReputationProfile, error) {
	var r model.ReputationProfile
	err := t.get(repKey(participant), &r)
	return r, err
}

func (t *badgerTx) PutReputation(r model.ReputationProfile) error {
	return t.put(repKey(r.Participant), r)
}

func (t *badgerTx) Leaderboard(c category.Category) (model.Leaderboard, error) {
	var l model.Leaderboard
	err := t.get(boardKey(c), &l)
	if err == nil && l.Ranked == nil {
		l.Ranked = []uint64{}
	}
	return l, err
}

func (t *badgerTx) PutLeaderboard(l model.Leaderboard) error {
	return t.put(boardKey(l.Category), l)
}

func (t *badgerTx) Platform() (model.Platform, error) {
	var p model.Platform
	err := t.get([]byte(keyPlatform), &p)
	return p, err
}

func (t *badgerTx) PutPlatform(p model.Platform) error {
	return t.put([]byte(keyPlatform), p)
}
