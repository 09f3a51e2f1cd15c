// Package storagetest holds behaviour tests shared by every driven.Catalog
// implementation. Each store package runs the same suite against its own
// constructor.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// OpenFunc returns an empty catalog. The suite closes it.
type OpenFunc func(t *testing.T) driven.Catalog

// RunCatalogTests exercises the full catalog contract.
func RunCatalogTests(t *testing.T, open OpenFunc) {
	t.Run("SaveItemRequiresOffer", func(t *testing.T) { testSaveItemRequiresOffer(t, open) })
	t.Run("SaveRequestRequiresItemAndPartner", func(t *testing.T) { testSaveRequestRequiresItemAndPartner(t, open) })
	t.Run("Lookups", func(t *testing.T) { testLookups(t, open) })
	t.Run("SaveItemOverwrites", func(t *testing.T) { testSaveItemOverwrites(t, open) })
	t.Run("AllItemsPages", func(t *testing.T) { testAllItemsPages(t, open) })
	t.Run("OpenRequests", func(t *testing.T) { testOpenRequests(t, open) })
	t.Run("ReturnsCopies", func(t *testing.T) { testReturnsCopies(t, open) })
}

func ptr(v int64) *int64 { return &v }

func openClean(t *testing.T, open OpenFunc) driven.Catalog {
	t.Helper()
	c := open(t)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c
}

// Seed stores two offers, a partner and three items. Items 2 and 3 share a
// normalised title; item 2 has no offer.
func Seed(t *testing.T, c driven.Catalog) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.SaveOffer(ctx, domain.DonorOffer{ID: 1, Name: "Spring drive"}))
	require.NoError(t, c.SaveOffer(ctx, domain.DonorOffer{ID: 2, Name: "Empty drive"}))
	require.NoError(t, c.SavePartner(ctx, domain.Partner{ID: 10, Name: "Clinic"}))
	require.NoError(t, c.SaveItem(ctx, domain.GeneralItem{ID: 3, Title: "Gauze Pads", DonorOfferID: ptr(1), QuantityAvailable: 4}))
	require.NoError(t, c.SaveItem(ctx, domain.GeneralItem{ID: 1, Title: "N95 masks", DonorOfferID: ptr(1), QuantityAvailable: 10}))
	require.NoError(t, c.SaveItem(ctx, domain.GeneralItem{ID: 2, Title: "  gauze   pads", QuantityAvailable: 0}))
}

func testSaveItemRequiresOffer(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)

	err := c.SaveItem(ctx, domain.GeneralItem{ID: 1, Title: "x", DonorOfferID: ptr(9)})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	err = c.SaveItem(ctx, domain.GeneralItem{ID: 1, Title: "  "})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
}

func testSaveRequestRequiresItemAndPartner(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)

	err := c.SaveRequest(ctx, domain.AllocationRequest{RequestID: 1, PartnerID: 10, ItemID: 99, Priority: domain.PriorityHigh})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	err = c.SaveRequest(ctx, domain.AllocationRequest{RequestID: 1, PartnerID: 11, ItemID: 1, Priority: domain.PriorityHigh})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	err = c.SaveRequest(ctx, domain.AllocationRequest{RequestID: 1, PartnerID: 10, ItemID: 1, Priority: "URGENT"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
}

func testLookups(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)

	it, err := c.GeneralItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "N95 masks", it.Title)
	require.NotNil(t, it.DonorOfferID)
	assert.Equal(t, int64(1), *it.DonorOfferID)
	assert.Equal(t, int64(10), it.QuantityAvailable)

	unscoped, err := c.GeneralItem(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, unscoped.DonorOfferID)

	_, err = c.GeneralItem(ctx, 42)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	items, err := c.GeneralItems(ctx, []int64{3, 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Equal(t, int64(1), items[1].ID)

	_, err = c.GeneralItems(ctx, []int64{1, 42})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	offer, err := c.ItemsForOffer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, offer, 2)
	assert.Equal(t, int64(1), offer[0].ID)
	assert.Equal(t, int64(3), offer[1].ID)

	empty, err := c.ItemsForOffer(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = c.ItemsForOffer(ctx, 77)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	live, err := c.ExistingItemIDs(ctx, []int64{1, 2, 42})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true}, live)

	none, err := c.ExistingItemIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	same, err := c.ItemsByNormalizedTitle(ctx, "gauze pads")
	require.NoError(t, err)
	require.Len(t, same, 2)
	assert.Equal(t, int64(2), same[0].ID)
	assert.Equal(t, int64(3), same[1].ID)
}

func testSaveItemOverwrites(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)
	require.NoError(t, c.SaveRequest(ctx, domain.AllocationRequest{
		RequestID: 1, PartnerID: 10, ItemID: 1, Priority: domain.PriorityHigh, QuantityRequested: 2,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, c.SaveItem(ctx, domain.GeneralItem{ID: 1, Title: "Surgical masks", DonorOfferID: ptr(2), QuantityAvailable: 3}))

	it, err := c.GeneralItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Surgical masks", it.Title)
	assert.Equal(t, int64(2), *it.DonorOfferID)
	assert.Equal(t, int64(3), it.QuantityAvailable)

	moved, err := c.ItemsByNormalizedTitle(ctx, "surgical masks")
	require.NoError(t, err)
	require.Len(t, moved, 1)

	open1, err := c.OpenRequests(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, open1, 1, "overwriting an item keeps its requests")
}

func testAllItemsPages(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)

	page, err := c.AllItems(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{1, 2}, []int64{page[0].ID, page[1].ID})

	page, err = c.AllItems(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(3), page[0].ID)

	page, err = c.AllItems(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	page, err = c.AllItems(ctx, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testOpenRequests(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []domain.AllocationRequest{
		{RequestID: 5, PartnerID: 10, ItemID: 1, Priority: domain.PriorityLow, QuantityRequested: 3, CreatedAt: base},
		{RequestID: 4, PartnerID: 10, ItemID: 1, Priority: domain.PriorityHigh, QuantityRequested: 2, CreatedAt: base},
		{RequestID: 6, PartnerID: 10, ItemID: 1, Priority: domain.PriorityHigh, QuantityRequested: 2, QuantityFulfilled: 2, CreatedAt: base},
		{RequestID: 7, PartnerID: 10, ItemID: 1, Priority: domain.PriorityHigh, QuantityRequested: -1, CreatedAt: base.Add(time.Hour)},
		{RequestID: 8, PartnerID: 10, ItemID: 3, Priority: domain.PriorityHigh, QuantityRequested: 1, CreatedAt: base},
	} {
		require.NoError(t, c.SaveRequest(ctx, r))
	}

	open1, err := c.OpenRequests(ctx, 1)
	require.NoError(t, err)
	ids := make([]int64, len(open1))
	for i, r := range open1 {
		ids[i] = r.RequestID
	}
	assert.Equal(t, []int64{4, 5, 7}, ids)
	assert.Equal(t, domain.PriorityHigh, open1[0].Priority)
	assert.True(t, base.Equal(open1[0].CreatedAt), "created_at round trips, got %v", open1[0].CreatedAt)
	assert.Equal(t, int64(-1), open1[2].QuantityRequested)
	assert.Nil(t, open1[0].MatchedFromItemID)

	require.NoError(t, c.DeleteItem(ctx, 1))
	open1, err = c.OpenRequests(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, open1)
	assert.True(t, errors.Is(c.DeleteItem(ctx, 1), domain.ErrNotFound))

	other, err := c.OpenRequests(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func testReturnsCopies(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	c := openClean(t, open)
	Seed(t, c)

	it, err := c.GeneralItem(ctx, 1)
	require.NoError(t, err)
	*it.DonorOfferID = 99

	again, err := c.GeneralItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *again.DonorOfferID)
}
