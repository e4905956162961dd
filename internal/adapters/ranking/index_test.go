package ranking

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/model"
)

func active(id, avg, votes uint64, c category.Category) model.Model {
	return model.Model{ID: id, AverageRating: avg, VoteCount: votes, Category: c, Active: true}
}

func TestIndex_BasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	// Test empty index
	if count := idx.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	idx.Upsert(ctx, active(1, 8, 3, category.ComputerVision))

	if count := idx.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	pos, err := idx.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Global.Rank != 1 || pos.Category.Rank != 1 {
		t.Errorf("expected rank 1/1, got %d/%d", pos.Global.Rank, pos.Category.Rank)
	}
	if pos.Global.AverageRating != 8 || pos.Global.VoteCount != 3 {
		t.Errorf("unexpected entry %+v", pos.Global)
	}

	entries, err := idx.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ModelID != 1 {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestIndex_Ordering(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	idx.Upsert(ctx, active(1, 5, 10, category.ComputerVision))
	idx.Upsert(ctx, active(2, 9, 1, category.Other))
	idx.Upsert(ctx, active(3, 5, 12, category.ComputerVision))
	idx.Upsert(ctx, active(4, 5, 12, category.Other))
	idx.Upsert(ctx, active(5, 0, 0, category.ComputerVision))

	entries, err := idx.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{2, 3, 4, 1, 5}
	for i, e := range entries {
		if e.ModelID != want[i] {
			t.Errorf("position %d: expected model %d, got %d", i+1, want[i], e.ModelID)
		}
		if e.Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i+1, i+1, e.Rank)
		}
	}

	pos, err := idx.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Global.Rank != 4 {
		t.Errorf("expected global rank 4, got %d", pos.Global.Rank)
	}
	// Computer vision holds 3, 1, 5.
	if pos.Category.Rank != 2 || pos.CategorySize != 3 {
		t.Errorf("expected category rank 2 of 3, got %d of %d", pos.Category.Rank, pos.CategorySize)
	}
}

func TestIndex_UpsertMovesAndDeactivationRemoves(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	idx.Upsert(ctx, active(1, 3, 1, category.GenerativeModels))
	idx.Upsert(ctx, active(2, 6, 1, category.GenerativeModels))

	// Model 1 improves past model 2.
	idx.Upsert(ctx, active(1, 7, 2, category.GenerativeModels))
	pos, err := idx.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Global.Rank != 1 {
		t.Errorf("expected model 1 to lead, got rank %d", pos.Global.Rank)
	}
	if idx.Count(ctx) != 2 {
		t.Errorf("re-upsert must not duplicate, count %d", idx.Count(ctx))
	}

	deactivated := active(1, 7, 2, category.GenerativeModels)
	deactivated.Active = false
	idx.Upsert(ctx, deactivated)

	if _, err := idx.Rank(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	pos, err = idx.Rank(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Global.Rank != 1 || pos.GlobalSize != 1 {
		t.Errorf("expected model 2 alone at rank 1, got %+v", pos)
	}

	idx.Remove(ctx, 2)
	idx.Remove(ctx, 99)
	if idx.Count(ctx) != 0 {
		t.Errorf("expected empty index, got %d", idx.Count(ctx))
	}
}

func TestIndex_EdgeCases(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(WithMaxLimit(5))

	if _, err := idx.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for 0, got %v", err)
	}
	if _, err := idx.TopN(ctx, 6); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit above max, got %v", err)
	}
	entries, err := idx.TopN(ctx, 5)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected empty result, got %v %v", entries, err)
	}
	if _, err := idx.Rank(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndex_RankCorrectnessAgainstSort(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	rng := rand.New(rand.NewSource(7))

	models := make(map[uint64]model.Model)
	cats := category.All()
	for i := 0; i < 2000; i++ {
		id := uint64(rng.Intn(500) + 1)
		m := active(id, uint64(rng.Intn(30)), uint64(rng.Intn(20)), cats[rng.Intn(len(cats))])
		if rng.Intn(10) == 0 {
			m.Active = false
		}
		idx.Upsert(ctx, m)
		models[id] = m
	}

	var expected []model.Model
	for _, m := range models {
		if m.Active {
			expected = append(expected, m)
		}
	}
	sort.Slice(expected, func(i, j int) bool { return model.RanksBefore(expected[i], expected[j]) })

	if idx.Count(ctx) != len(expected) {
		t.Fatalf("expected %d indexed, got %d", len(expected), idx.Count(ctx))
	}
	for i, m := range expected {
		pos, err := idx.Rank(ctx, m.ID)
		if err != nil {
			t.Fatalf("model %d: %v", m.ID, err)
		}
		if pos.Global.Rank != i+1 {
			t.Fatalf("model %d: expected rank %d, got %d", m.ID, i+1, pos.Global.Rank)
		}
	}

	// Rebuilding from the same models must agree with incremental updates.
	all := make([]model.Model, 0, len(models))
	for _, m := range models {
		all = append(all, m)
	}
	rebuilt := NewIndex()
	rebuilt.Rebuild(ctx, all)
	a, _ := idx.TopN(ctx, 100)
	b, _ := rebuilt.TopN(ctx, 100)
	if len(a) != len(b) {
		t.Fatalf("length mismatch %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := uint64(g*1000 + i + 1)
				idx.Upsert(ctx, active(id, uint64(i%10), uint64(i), category.Other))
				_, _ = idx.TopN(ctx, 10)
				_, _ = idx.Rank(ctx, id)
			}
		}(g)
	}
	wg.Wait()

	if idx.Count(ctx) != 1600 {
		t.Errorf("expected 1600 entries, got %d", idx.Count(ctx))
	}
}
