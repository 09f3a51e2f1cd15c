package vector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	recs := []driven.IndexRecord{
		{Entry: domain.CatalogEntry{ID: 1}, Vector: []float32{1, 0, 0}},
		{Entry: domain.CatalogEntry{ID: 2}, Vector: []float32{0, 1, 0}},
	}
	dims, err := CheckDimensions(0, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)

	_, err = CheckDimensions(4, recs)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = CheckDimensions(0, []driven.IndexRecord{{Entry: domain.CatalogEntry{ID: 3}}})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestTopK_OrdersByDistanceThenID(t *testing.T) {
	hits := []driven.VectorHit{
		{Entry: domain.CatalogEntry{ID: 9}, Distance: 0.2},
		{Entry: domain.CatalogEntry{ID: 4}, Distance: 0.1},
		{Entry: domain.CatalogEntry{ID: 2}, Distance: 0.2},
		{Entry: domain.CatalogEntry{ID: 7}, Distance: 0.5},
	}

	got := TopK(hits, 3)

	require.Len(t, got, 3)
	assert.Equal(t, int64(4), got[0].Entry.ID)
	assert.Equal(t, int64(2), got[1].Entry.ID)
	assert.Equal(t, int64(9), got[2].Entry.ID)
}

func TestCloneEntry(t *testing.T) {
	g := int64(5)
	e := domain.CatalogEntry{ID: 1, Title: "x", GroupID: &g}
	c := CloneEntry(e)
	*e.GroupID = 6
	assert.Equal(t, int64(5), *c.GroupID)
}
