package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

func group(v int64) *int64 { return &v }

func rec(id int64, title string, g *int64, vec ...float32) driven.IndexRecord {
	return driven.IndexRecord{Entry: domain.CatalogEntry{ID: id, Title: title, GroupID: g}, Vector: vec}
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{rec(1, "masks", nil, 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{rec(1, "masks", nil, 1, 0)}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, idx.Dimensions())
}

func TestIndex_UpsertRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{rec(1, "a", nil, 1, 0)}))

	err := idx.Upsert(ctx, []driven.IndexRecord{rec(2, "b", nil, 1, 0, 0)})

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIndex_QueryOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{
		rec(1, "far", group(1), 0, 1),
		rec(2, "near", group(1), 1, 0.1),
		rec(3, "exact", group(2), 1, 0),
		rec(4, "exact twin", group(1), 1, 0),
	}))

	all, err := idx.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []int64{3, 4, 2, 1}, []int64{all[0].Entry.ID, all[1].Entry.ID, all[2].Entry.ID, all[3].Entry.ID})

	scoped, err := idx.Query(ctx, []float32{1, 0}, 10, group(1))
	require.NoError(t, err)
	require.Len(t, scoped, 3)
	for _, h := range scoped {
		assert.Equal(t, int64(1), *h.Entry.GroupID)
	}

	top, err := idx.Query(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(3), top[0].Entry.ID)
}

func TestIndex_DeleteGroupLeavesOthers(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{
		rec(1, "a", group(1), 1, 0),
		rec(2, "b", group(1), 0, 1),
		rec(3, "c", group(2), 1, 1),
		rec(4, "d", nil, 1, 1),
	}))

	n, err := idx.DeleteGroup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := idx.Get(ctx, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Len(t, left, 2)
	assert.Contains(t, left, int64(3))
	assert.Contains(t, left, int64(4))
}

func TestIndex_DeleteIDsCountsExisting(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{rec(1, "a", nil, 1, 0)}))

	n, err := idx.DeleteIDs(ctx, []int64{1, 99})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []driven.IndexRecord{rec(1, "a", group(3), 1, 0)}))

	got, err := idx.Get(ctx, []int64{1})
	require.NoError(t, err)
	got[1].Vector[0] = 42
	*got[1].Entry.GroupID = 9

	again, err := idx.Get(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[1].Vector[0])
	assert.Equal(t, int64(3), *again[1].Entry.GroupID)
}

func TestIndex_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := int64(i)
				_ = idx.Upsert(ctx, []driven.IndexRecord{rec(id, "x", group(int64(w)), 1, float32(w))})
				_, _ = idx.Query(ctx, []float32{1, 0}, 5, nil)
			}
		}(w)
	}
	wg.Wait()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}
