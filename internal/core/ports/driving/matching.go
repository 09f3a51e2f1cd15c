package driving

import (
	"context"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// MatchingService keeps the catalog index in step with item titles and
// answers nearest-neighbour queries.
type MatchingService interface {
	// AddItems embeds and upserts entries. Re-adding an id overwrites it.
	AddItems(ctx context.Context, entries []domain.CatalogEntry) (domain.BatchManifest, error)

	// ModifyItems patches existing entries. Unknown ids fail with domain.ErrNotFound.
	ModifyItems(ctx context.Context, patches []domain.CatalogPatch) (domain.BatchManifest, error)

	// RemoveItems deletes by ids and/or group and returns the number removed.
	RemoveItems(ctx context.Context, sel domain.RemoveSelector) (int, error)

	// Reindex rebuilds the index from the relational store in batches.
	Reindex(ctx context.Context, batchSize int) (domain.BatchManifest, error)

	// Search returns the closest live entries, classified hard or soft.
	// No match is an empty slice, not an error.
	Search(ctx context.Context, q domain.MatchQuery) ([]domain.MatchResult, error)
}
