package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// mockMatchingService is a mock implementation of driving.MatchingService.
type mockMatchingService struct {
	lastQuery domain.MatchQuery
	results   []domain.MatchResult
	err       error
}

func (m *mockMatchingService) AddItems(_ context.Context, _ []domain.CatalogEntry) (domain.BatchManifest, error) {
	return domain.BatchManifest{}, m.err
}

func (m *mockMatchingService) ModifyItems(_ context.Context, _ []domain.CatalogPatch) (domain.BatchManifest, error) {
	return domain.BatchManifest{}, m.err
}

func (m *mockMatchingService) RemoveItems(_ context.Context, _ domain.RemoveSelector) (int, error) {
	return 0, m.err
}

func (m *mockMatchingService) Reindex(_ context.Context, _ int) (domain.BatchManifest, error) {
	return domain.BatchManifest{}, m.err
}

func (m *mockMatchingService) Search(_ context.Context, q domain.MatchQuery) ([]domain.MatchResult, error) {
	m.lastQuery = q
	return m.results, m.err
}

// mockSuggestionService is a mock implementation of driving.SuggestionService.
type mockSuggestionService struct {
	lastInput domain.SuggestionInput
	report    domain.SuggestionReport
	err       error
}

func (m *mockSuggestionService) Suggest(_ context.Context, in domain.SuggestionInput) (domain.SuggestionReport, error) {
	m.lastInput = in
	if err := in.Validate(); err != nil {
		return domain.SuggestionReport{}, err
	}
	return m.report, m.err
}

func (m *mockSuggestionService) SuggestForOffer(ctx context.Context, id int64) (domain.SuggestionReport, error) {
	return m.Suggest(ctx, domain.SuggestionInput{DonorOfferID: &id})
}

func (m *mockSuggestionService) SuggestForItems(ctx context.Context, ids []int64) (domain.SuggestionReport, error) {
	return m.Suggest(ctx, domain.SuggestionInput{GeneralItemIDs: ids})
}

// mockCatalog implements driven.CatalogStore and driven.RequestStore.
type mockCatalog struct {
	items    map[int64]domain.GeneralItem
	offers   map[int64][]int64
	requests map[int64][]domain.AllocationRequest
	err      error
}

func (m *mockCatalog) GeneralItem(_ context.Context, id int64) (*domain.GeneralItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	return &it, nil
}

func (m *mockCatalog) GeneralItems(ctx context.Context, ids []int64) ([]domain.GeneralItem, error) {
	out := make([]domain.GeneralItem, 0, len(ids))
	for _, id := range ids {
		it, err := m.GeneralItem(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, nil
}

func (m *mockCatalog) ItemsForOffer(ctx context.Context, offerID int64) ([]domain.GeneralItem, error) {
	ids, ok := m.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("donor offer %d: %w", offerID, domain.ErrNotFound)
	}
	return m.GeneralItems(ctx, ids)
}

func (m *mockCatalog) ExistingItemIDs(_ context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *mockCatalog) ItemsByNormalizedTitle(_ context.Context, _ string) ([]domain.GeneralItem, error) {
	return nil, nil
}

func (m *mockCatalog) AllItems(_ context.Context, _ int64, _ int) ([]domain.GeneralItem, error) {
	return nil, nil
}

func (m *mockCatalog) OpenRequests(_ context.Context, itemID int64) ([]domain.AllocationRequest, error) {
	return m.requests[itemID], nil
}
