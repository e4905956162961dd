// Package clock supplies the monotonically increasing height used as ledger time.
package clock

import (
	"sync/atomic"
	"time"
)

// Manual is a height source advanced explicitly. Safe for concurrent use.
type Manual struct {
	height atomic.Uint64
}

// NewManual starts a manual clock at height.
func NewManual(height uint64) *Manual {
	m := &Manual{}
	m.height.Store(height)
	return m
}

// CurrentHeight returns the current height.
func (m *Manual) CurrentHeight() uint64 { return m.height.Load() }

// Advance moves the clock forward by n and returns the new height.
func (m *Manual) Advance(n uint64) uint64 { return m.height.Add(n) }

// Set jumps to height unless that would move the clock backwards.
func (m *Manual) Set(height uint64) {
	for {
		cur := m.height.Load()
		if height <= cur || m.height.CompareAndSwap(cur, height) {
			return
		}
	}
}

// Option applies a configuration option to the Ticker.
type Option func(*Ticker)

// WithGenesisHeight sets the height reported when the ticker starts.
func WithGenesisHeight(h uint64) Option {
	return func(t *Ticker) {
		t.genesis = h
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(t *Ticker) {
		if now != nil {
			t.now = now
		}
	}
}

// Ticker derives height from elapsed time: one height unit per interval.
// Height is computed from the monotonic reading, so wall clock jumps do not
// affect it.
type Ticker struct {
	interval time.Duration
	genesis  uint64
	start    time.Time
	now      func() time.Time
}

// NewTicker starts a ticker. A non-positive interval defaults to one second.
func NewTicker(interval time.Duration, opts ...Option) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	t := &Ticker{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t
}

// CurrentHeight returns genesis plus the number of whole intervals elapsed.
func (t *Ticker) CurrentHeight() uint64 {
	elapsed := t.now().Sub(t.start)
	if elapsed < 0 {
		return t.genesis
	}
	return t.genesis + uint64(elapsed/t.interval)
}
