package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/textnorm"
)

// Ensure Catalog implements the interface.
var _ driven.Catalog = (*Catalog)(nil)

// Catalog is an in-memory relational store for offers, partners, items and
// requests. Quantities are stored as given so that invalid snapshots reach
// the engine unchanged.
type Catalog struct {
	mu       sync.RWMutex
	offers   map[int64]domain.DonorOffer
	partners map[int64]domain.Partner
	items    map[int64]domain.GeneralItem
	requests map[int64]domain.AllocationRequest
}

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		offers:   make(map[int64]domain.DonorOffer),
		partners: make(map[int64]domain.Partner),
		items:    make(map[int64]domain.GeneralItem),
		requests: make(map[int64]domain.AllocationRequest),
	}
}

// SaveOffer stores or updates a donor offer.
func (c *Catalog) SaveOffer(_ context.Context, offer domain.DonorOffer) error {
	if offer.ID <= 0 {
		return fmt.Errorf("%w: offer id must be positive", domain.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers[offer.ID] = offer
	return nil
}

// SavePartner stores or updates a partner.
func (c *Catalog) SavePartner(_ context.Context, partner domain.Partner) error {
	if partner.ID <= 0 {
		return fmt.Errorf("%w: partner id must be positive", domain.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partners[partner.ID] = partner
	return nil
}

// SaveItem stores or updates a general item. A referenced offer must exist.
func (c *Catalog) SaveItem(_ context.Context, item domain.GeneralItem) error {
	if err := item.CatalogEntry().Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if item.DonorOfferID != nil {
		if _, ok := c.offers[*item.DonorOfferID]; !ok {
			return fmt.Errorf("donor offer %d: %w", *item.DonorOfferID, domain.ErrNotFound)
		}
		g := *item.DonorOfferID
		item.DonorOfferID = &g
	}
	c.items[item.ID] = item
	return nil
}

// SaveRequest stores or updates a request. Its item and partner must exist.
func (c *Catalog) SaveRequest(_ context.Context, req domain.AllocationRequest) error {
	if req.RequestID <= 0 {
		return fmt.Errorf("%w: request id must be positive", domain.ErrInvalidInput)
	}
	if !req.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, req.Priority)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[req.ItemID]; !ok {
		return fmt.Errorf("general item %d: %w", req.ItemID, domain.ErrNotFound)
	}
	if _, ok := c.partners[req.PartnerID]; !ok {
		return fmt.Errorf("partner %d: %w", req.PartnerID, domain.ErrNotFound)
	}
	req.MatchedFromItemID = nil
	c.requests[req.RequestID] = req
	return nil
}

// DeleteItem removes an item and its requests.
func (c *Catalog) DeleteItem(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	delete(c.items, id)
	for rid, r := range c.requests {
		if r.ItemID == id {
			delete(c.requests, rid)
		}
	}
	return nil
}

// GeneralItem returns an item by id.
func (c *Catalog) GeneralItem(_ context.Context, id int64) (*domain.GeneralItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok {
		return nil, fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	it = copyItem(it)
	return &it, nil
}

// GeneralItems returns items in the order requested.
func (c *Catalog) GeneralItems(_ context.Context, ids []int64) ([]domain.GeneralItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.GeneralItem, 0, len(ids))
	var missing []string
	for _, id := range ids {
		it, ok := c.items[id]
		if !ok {
			missing = append(missing, fmt.Sprintf("%d", id))
			continue
		}
		out = append(out, copyItem(it))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("general items %s: %w", strings.Join(missing, ","), domain.ErrNotFound)
	}
	return out, nil
}

// ItemsForOffer returns the items of an offer ordered by id.
func (c *Catalog) ItemsForOffer(_ context.Context, offerID int64) ([]domain.GeneralItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.offers[offerID]; !ok {
		return nil, fmt.Errorf("donor offer %d: %w", offerID, domain.ErrNotFound)
	}
	return c.sortedItems(func(it domain.GeneralItem) bool {
		return it.DonorOfferID != nil && *it.DonorOfferID == offerID
	}), nil
}

// ExistingItemIDs returns the subset of ids that are stored.
func (c *Catalog) ExistingItemIDs(_ context.Context, ids []int64) (map[int64]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.items[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// ItemsByNormalizedTitle returns items whose normalised title equals title.
func (c *Catalog) ItemsByNormalizedTitle(_ context.Context, title string) ([]domain.GeneralItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedItems(func(it domain.GeneralItem) bool {
		return textnorm.Title(it.Title) == title
	}), nil
}

// AllItems pages through items ordered by id. limit <= 0 returns the rest.
func (c *Catalog) AllItems(_ context.Context, afterID int64, limit int) ([]domain.GeneralItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.sortedItems(func(it domain.GeneralItem) bool { return it.ID > afterID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OpenRequests returns requests for the item whose outstanding quantity is
// not zero, ordered by creation time then id. Over-fulfilled and negative
// rows are included so the engine can reject them.
func (c *Catalog) OpenRequests(_ context.Context, itemID int64) ([]domain.AllocationRequest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.AllocationRequest
	for _, r := range c.requests {
		if r.ItemID == itemID && r.Outstanding() != 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RequestID < out[j].RequestID
	})
	return out, nil
}

// Close is a no-op.
func (c *Catalog) Close() error {
	return nil
}

// sortedItems must be called with the lock held.
func (c *Catalog) sortedItems(keep func(domain.GeneralItem) bool) []domain.GeneralItem {
	out := make([]domain.GeneralItem, 0)
	for _, it := range c.items {
		if keep(it) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyItem(it domain.GeneralItem) domain.GeneralItem {
	if it.DonorOfferID != nil {
		g := *it.DonorOfferID
		it.DonorOfferID = &g
	}
	return it
}
