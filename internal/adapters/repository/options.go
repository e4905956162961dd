package repository

import (
	"time"

	"github.com/okian/modelrank/pkg/logger"
)

// Option applies a configuration option to the BadgerStore.
type Option func(*BadgerStore)

// WithInMemory keeps the badger database in memory. The path is ignored.
func WithInMemory() Option {
	return func(s *BadgerStore) {
		s.inMemory = true
	}
}

// WithSyncWrites toggles fsync on every commit.
func WithSyncWrites(sync bool) Option {
	return func(s *BadgerStore) {
		s.syncWrites = sync
	}
}

// WithGCInterval sets how often value log garbage collection runs.
// Zero disables it.
func WithGCInterval(interval time.Duration) Option {
	return func(s *BadgerStore) {
		if interval >= 0 {
			s.gcInterval = interval
		}
	}
}

// WithGCDiscardRatio sets the garbage ratio that triggers a value log rewrite.
func WithGCDiscardRatio(ratio float64) Option {
	return func(s *BadgerStore) {
		if ratio > 0 && ratio < 1 {
			s.gcDiscardRatio = ratio
		}
	}
}

// WithLogger routes badger's internal logs to l.
func WithLogger(l logger.Logger) Option {
	return func(s *BadgerStore) {
		if l != nil {
			s.log = l
		}
	}
}
