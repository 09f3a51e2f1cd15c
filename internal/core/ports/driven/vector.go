package driven

import (
	"context"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// CatalogIndex is a collection-scoped vector store of catalog entries.
// Writes are atomic per id and last-writer-wins; implementations must be
// safe for concurrent use and do no cross-store coordination.
type CatalogIndex interface {
	// Upsert inserts or overwrites records keyed by entry id.
	Upsert(ctx context.Context, records []IndexRecord) error

	// Get returns the stored records for the given ids.
	// Missing ids are absent from the result rather than an error.
	Get(ctx context.Context, ids []int64) (map[int64]IndexRecord, error)

	// DeleteIDs removes records by id and returns how many existed.
	DeleteIDs(ctx context.Context, ids []int64) (int, error)

	// DeleteGroup removes every record in the group and returns how many existed.
	DeleteGroup(ctx context.Context, groupID int64) (int, error)

	// Query returns up to k records nearest to vector, closest first.
	// When groupID is set only records in that group are considered.
	Query(ctx context.Context, vector []float32, k int, groupID *int64) ([]VectorHit, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the vector size recorded for the collection,
	// or 0 if the collection has not stored a vector yet.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// IndexRecord is a stored catalog entry and its embedding.
type IndexRecord struct {
	Entry  domain.CatalogEntry
	Vector []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	Entry domain.CatalogEntry

	// Distance is the cosine distance (1 - cosine similarity), 0 = identical.
	Distance float64
}
