package mcp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestServer_handleSearchCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("returns classified matches", func(t *testing.T) {
		matching := &mockMatchingService{
			results: []domain.MatchResult{
				{ID: 4, Title: "N95 masks", GroupID: int64Ptr(7), Distance: 0.05, Similarity: 0.95, Strength: domain.MatchHard},
				{ID: 9, Title: "cloth masks", Distance: 0.3, Similarity: 0.7, Strength: domain.MatchSoft},
			},
		}
		server, err := NewServer(&Ports{Matching: matching})
		require.NoError(t, err)

		cutoff := 0.4
		_, output, err := server.handleSearchCatalog(ctx, nil, SearchCatalogInput{
			Query: "masks", K: 5, GroupID: int64Ptr(7), DistanceCutoff: &cutoff, ExcludeIDs: []int64{1},
		})

		require.NoError(t, err)
		assert.Equal(t, 2, output.Count)
		assert.Equal(t, int64(4), output.Matches[0].ItemID)
		assert.Equal(t, "hard", output.Matches[0].Strength)
		assert.Equal(t, "soft", output.Matches[1].Strength)
		assert.Equal(t, int64(7), *output.Matches[0].GroupID)

		assert.Equal(t, "masks", matching.lastQuery.Query)
		assert.Equal(t, 5, matching.lastQuery.K)
		assert.Equal(t, []int64{1}, matching.lastQuery.ExcludeIDs)
		assert.InDelta(t, 0.4, *matching.lastQuery.DistanceCutoff, 1e-12)
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Matching: &mockMatchingService{}})
		require.NoError(t, err)

		_, output, err := server.handleSearchCatalog(ctx, nil, SearchCatalogInput{Query: "zzz"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.NotNil(t, output.Matches)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		matching := &mockMatchingService{err: fmt.Errorf("embed: %w", domain.ErrUpstreamUnavailable)}
		server, err := NewServer(&Ports{Matching: matching})
		require.NoError(t, err)

		_, _, err = server.handleSearchCatalog(ctx, nil, SearchCatalogInput{Query: "masks"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})
}

func TestServer_handleSuggestAllocations(t *testing.T) {
	ctx := context.Background()
	generated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("flattens the report", func(t *testing.T) {
		suggestion := &mockSuggestionService{
			report: domain.SuggestionReport{
				RunID:       "run-1",
				GeneratedAt: generated,
				Suggestions: []domain.AllocationSuggestion{
					{RequestID: 1, PartnerID: 50, ItemID: 2, SuggestedQuantity: 6},
					{RequestID: 3, PartnerID: 51, ItemID: 2, SuggestedQuantity: 4, MatchedFromItemID: int64Ptr(8)},
				},
				Items: []domain.ItemReport{{
					ItemID: 2, Title: "masks", QuantityAvailable: 10, Allocated: 10,
					HardMatches: []domain.MatchResult{{ID: 8}},
					SoftMatches: []domain.MatchResult{{ID: 9}},
				}},
			},
		}
		server, err := NewServer(&Ports{Matching: &mockMatchingService{}, Suggestion: suggestion})
		require.NoError(t, err)

		_, output, err := server.handleSuggestAllocations(ctx, nil, SuggestAllocationsInput{DonorOfferID: int64Ptr(3)})

		require.NoError(t, err)
		assert.Equal(t, "run-1", output.RunID)
		assert.Equal(t, "2024-03-01T12:00:00Z", output.GeneratedAt)
		require.Len(t, output.Suggestions, 2)
		assert.Equal(t, int64(6), output.Suggestions[0].SuggestedQuantity)
		assert.Equal(t, int64(8), *output.Suggestions[1].MatchedFromItemID)
		require.Len(t, output.Items, 1)
		assert.Equal(t, []int64{8}, output.Items[0].HardMatchIDs)
		assert.Equal(t, []int64{9}, output.Items[0].SoftMatchIDs)
		assert.Equal(t, int64(3), *suggestion.lastInput.DonorOfferID)
	})

	t.Run("rejects both selectors", func(t *testing.T) {
		server, err := NewServer(&Ports{Matching: &mockMatchingService{}, Suggestion: &mockSuggestionService{}})
		require.NoError(t, err)

		_, _, err = server.handleSuggestAllocations(ctx, nil, SuggestAllocationsInput{
			DonorOfferID: int64Ptr(3), GeneralItemIDs: []int64{1},
		})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
