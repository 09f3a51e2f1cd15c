// Package memory provides an in-process catalog index.
// It is used in tests and for short-lived runs where the index is rebuilt
// from the relational store on startup.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/vector"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.CatalogIndex = (*Index)(nil)

// Index is a brute-force cosine index guarded by a RWMutex.
type Index struct {
	mu      sync.RWMutex
	records map[int64]driven.IndexRecord
	dims    int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{records: make(map[int64]driven.IndexRecord)}
}

// Upsert inserts or overwrites records. All vectors must share one dimension.
func (idx *Index) Upsert(_ context.Context, records []driven.IndexRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	dims, err := vector.CheckDimensions(idx.dims, records)
	if err != nil {
		return err
	}
	idx.dims = dims
	for _, r := range records {
		idx.records[r.Entry.ID] = driven.IndexRecord{
			Entry:  vector.CloneEntry(r.Entry),
			Vector: vector.CloneVector(r.Vector),
		}
	}
	return nil
}

// Get returns the stored records for ids.
func (idx *Index) Get(_ context.Context, ids []int64) (map[int64]driven.IndexRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[int64]driven.IndexRecord, len(ids))
	for _, id := range ids {
		if r, ok := idx.records[id]; ok {
			out[id] = driven.IndexRecord{Entry: vector.CloneEntry(r.Entry), Vector: vector.CloneVector(r.Vector)}
		}
	}
	return out, nil
}

// DeleteIDs removes records by id.
func (idx *Index) DeleteIDs(_ context.Context, ids []int64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := idx.records[id]; ok {
			delete(idx.records, id)
			n++
		}
	}
	return n, nil
}

// DeleteGroup removes every record in the group.
func (idx *Index) DeleteGroup(_ context.Context, groupID int64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := 0
	for id, r := range idx.records {
		if r.Entry.GroupID != nil && *r.Entry.GroupID == groupID {
			delete(idx.records, id)
			n++
		}
	}
	return n, nil
}

// Query returns the k nearest records, optionally restricted to a group.
func (idx *Index) Query(ctx context.Context, vec []float32, k int, groupID *int64) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(idx.records))
	for _, r := range idx.records {
		if !r.Entry.InGroup(groupID) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			Entry:    vector.CloneEntry(r.Entry),
			Distance: vector.CosineDistance(vec, r.Vector),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vector.TopK(hits, k), nil
}

// Count returns the number of stored records.
func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records), nil
}

// Dimensions returns the vector size of stored records, or 0 if empty.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}
