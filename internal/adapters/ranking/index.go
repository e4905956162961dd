// Package ranking maintains an in-memory ordered index of active models.
package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/pkg/metrics"
)

// Treap-based ordered index.
//
// Ordering: average DESC, then votes DESC, then id ASC. This is the same
// total order the category leaderboards use, so in-order traversal yields
// models from best to worst and every model has a distinct position.

// Entry is one ranked model.
type Entry struct {
	Rank          int               `json:"rank"`
	ModelID       uint64            `json:"model_id"`
	Category      category.Category `json:"category"`
	AverageRating uint64            `json:"average_rating"`
	VoteCount     uint64            `json:"vote_count"`
}

// key is the ordering tuple of a model.
type key struct {
	avg   uint64
	votes uint64
	id    uint64
}

func keyOf(m model.Model) key {
	return key{avg: m.AverageRating, votes: m.VoteCount, id: m.ID}
}

// less returns true if a should appear before b (better ranks first).
func less(a, b key) bool {
	if a.avg != b.avg {
		return a.avg > b.avg
	}
	if a.votes != b.votes {
		return a.votes > b.votes
	}
	return a.id < b.id
}

// treap node
type node struct {
	k     key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priorityOf mixes the model id into a heap priority (splitmix64 finalizer).
// Deterministic, so rebuilding the index from the same models yields the
// same shape.
func priorityOf(id uint64) uint64 {
	z := id + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n *node, k key) *node {
	if n == nil {
		return &node{k: k, prio: priorityOf(k.id), size: 1}
	}
	if less(k, n.k) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	if k == n.k {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	} else if less(k, n.k) {
		n.left = deleteNode(n.left, k)
	} else {
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// position returns the 1-based in-order position of k, which must be present.
func position(n *node, k key) int {
	pos := 0
	for n != nil {
		switch {
		case k == n.k:
			return pos + nsize(n.left) + 1
		case less(k, n.k):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit keys in rank order.
func collectTopN(n *node, limit int, out *[]key) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.k)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// tree is one ordered set of keys.
type tree struct {
	root *node
}

func (t *tree) insert(k key) { t.root = insert(t.root, k) }
func (t *tree) remove(k key) { t.root = deleteNode(t.root, k) }
func (t *tree) len() int     { return nsize(t.root) }

type record struct {
	k        key
	category category.Category
}

// Index ranks active models globally and within their category.
type Index struct {
	mu         sync.RWMutex
	global     tree
	byCategory map[category.Category]*tree
	byID       map[uint64]record
	maxLimit   int
}

// NewIndex constructs an empty index with configuration options.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		byCategory: make(map[category.Category]*tree, category.Count),
		byID:       make(map[uint64]record),
		maxLimit:   defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(idx)
	}
	for _, c := range category.All() {
		idx.byCategory[c] = &tree{}
	}
	return idx
}

// Upsert places m at its current position. Inactive models are removed.
func (x *Index) Upsert(ctx context.Context, m model.Model) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	x.mu.Lock()
	x.removeLocked(m.ID)
	if m.Active {
		k := keyOf(m)
		x.byID[m.ID] = record{k: k, category: m.Category}
		x.global.insert(k)
		if t, ok := x.byCategory[m.Category]; ok {
			t.insert(k)
		}
	}
	size := len(x.byID)
	x.mu.Unlock()

	metrics.UpdateRankingIndexSize(size)
}

// Remove drops a model from the index. Unknown ids are ignored.
func (x *Index) Remove(ctx context.Context, id uint64) {
	x.mu.Lock()
	x.removeLocked(id)
	size := len(x.byID)
	x.mu.Unlock()

	metrics.UpdateRankingIndexSize(size)
}

func (x *Index) removeLocked(id uint64) {
	old, ok := x.byID[id]
	if !ok {
		return
	}
	x.global.remove(old.k)
	if t, ok := x.byCategory[old.category]; ok {
		t.remove(old.k)
	}
	delete(x.byID, id)
}

// Rebuild replaces the whole index with the given models.
func (x *Index) Rebuild(ctx context.Context, models []model.Model) {
	x.mu.Lock()
	x.global = tree{}
	for c := range x.byCategory {
		x.byCategory[c] = &tree{}
	}
	x.byID = make(map[uint64]record, len(models))
	for _, m := range models {
		if !m.Active {
			continue
		}
		k := keyOf(m)
		x.byID[m.ID] = record{k: k, category: m.Category}
		x.global.insert(k)
		if t, ok := x.byCategory[m.Category]; ok {
			t.insert(k)
		}
	}
	size := len(x.byID)
	x.mu.Unlock()

	metrics.UpdateRankingIndexSize(size)
}

// Position is a model's rank globally and within its category.
type Position struct {
	Global   Entry `json:"global"`
	Category Entry `json:"category"`
	// CategorySize is the number of active models in the category.
	CategorySize int `json:"category_size"`
	// GlobalSize is the number of active models overall.
	GlobalSize int `json:"global_size"`
}

// Rank returns the model's position in O(log n).
// Returns ErrNotFound if the model is not indexed.
func (x *Index) Rank(ctx context.Context, id uint64) (Position, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	x.mu.RLock()
	defer x.mu.RUnlock()

	rec, ok := x.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("ranking", "not_found")
		return Position{}, ErrNotFound
	}
	ct := x.byCategory[rec.category]
	global := entryOf(rec.k, rec.category)
	global.Rank = position(x.global.root, rec.k)
	inCat := global
	inCat.Rank = position(ct.root, rec.k)
	return Position{
		Global:       global,
		Category:     inCat,
		CategorySize: ct.len(),
		GlobalSize:   x.global.len(),
	}, nil
}

// TopN returns the best n models across all categories.
func (x *Index) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 || n > x.maxLimit {
		metrics.RecordErrorByComponent("ranking", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	keys := make([]key, 0, n)
	collectTopN(x.global.root, n, &keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = entryOf(k, x.byID[k.id].category)
		out[i].Rank = i + 1
	}
	return out, nil
}

// Count returns the number of indexed models.
func (x *Index) Count(ctx context.Context) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

func entryOf(k key, c category.Category) Entry {
	return Entry{ModelID: k.id, Category: c, AverageRating: k.avg, VoteCount: k.votes}
}
