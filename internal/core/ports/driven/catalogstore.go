package driven

import (
	"context"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// CatalogStore is the read side of the relational store for general items.
// It is the source of truth that the vector index is projected from.
type CatalogStore interface {
	// GeneralItem returns an item by id, or domain.ErrNotFound.
	GeneralItem(ctx context.Context, id int64) (*domain.GeneralItem, error)

	// GeneralItems returns the items for the given ids in the order requested.
	// Any unknown id yields domain.ErrNotFound.
	GeneralItems(ctx context.Context, ids []int64) ([]domain.GeneralItem, error)

	// ItemsForOffer returns the items of a donor offer, ordered by id.
	// An unknown offer yields domain.ErrNotFound.
	ItemsForOffer(ctx context.Context, offerID int64) ([]domain.GeneralItem, error)

	// ExistingItemIDs returns the subset of ids that are live records.
	ExistingItemIDs(ctx context.Context, ids []int64) (map[int64]bool, error)

	// ItemsByNormalizedTitle returns items whose normalised title equals title.
	ItemsByNormalizedTitle(ctx context.Context, title string) ([]domain.GeneralItem, error)

	// AllItems pages through every item ordered by id, starting after afterID.
	AllItems(ctx context.Context, afterID int64, limit int) ([]domain.GeneralItem, error)
}

// RequestStore is the read side of the relational store for partner requests.
type RequestStore interface {
	// OpenRequests returns requests for the item with outstanding quantity.
	OpenRequests(ctx context.Context, itemID int64) ([]domain.AllocationRequest, error)
}

// CatalogWriter loads records into the relational store. The owning
// application writes these tables in production; the writer serves
// snapshot imports and tests.
type CatalogWriter interface {
	SaveOffer(ctx context.Context, offer domain.DonorOffer) error
	SavePartner(ctx context.Context, partner domain.Partner) error
	SaveItem(ctx context.Context, item domain.GeneralItem) error
	SaveRequest(ctx context.Context, req domain.AllocationRequest) error

	// DeleteItem removes an item and its requests. Unknown ids yield
	// domain.ErrNotFound.
	DeleteItem(ctx context.Context, id int64) error
}

// Catalog is the full relational store surface.
type Catalog interface {
	CatalogStore
	RequestStore
	CatalogWriter
	Close() error
}
