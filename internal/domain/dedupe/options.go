package dedupe

import "time"

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of keys held. The oldest key is evicted first.
// A value <= 0 disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL sets how long a key is held. A value <= 0 holds keys until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		d.ttl = ttl
	}
}

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(d *inMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
