package ranking

const defaultMaxLimit = 1000

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithMaxLimit caps the number of entries a single TopN call may return.
func WithMaxLimit(limit int) Option {
	return func(x *Index) {
		if limit > 0 {
			x.maxLimit = limit
		}
	}
}
