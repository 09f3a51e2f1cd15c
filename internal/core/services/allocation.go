package services

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// Allocate distributes a supply lot across requests with a strict priority
// waterfall: HIGH is served before MEDIUM before LOW, and within a tier
// requests are served first-come (CreatedAt, then RequestID). Each request
// receives min(outstanding, remaining). A higher tier can consume the whole
// lot; there is no proportional split within or across tiers.
//
// Requests that receive nothing are omitted. The snapshot is validated up
// front and never clamped: a negative quantity anywhere aborts the lot.
func Allocate(lot domain.SupplyLot, requests []domain.AllocationRequest) ([]domain.AllocationSuggestion, error) {
	if err := lot.Validate(); err != nil {
		return nil, err
	}
	for _, r := range requests {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if r.ItemID != lot.ItemID {
			return nil, fmt.Errorf("%w: request %d targets item %d, not %d",
				domain.ErrInvalidInput, r.RequestID, r.ItemID, lot.ItemID)
		}
	}

	ordered := make([]domain.AllocationRequest, len(requests))
	copy(ordered, requests)
	sortByPriority(ordered)

	remaining := lot.QuantityAvailable
	suggestions := make([]domain.AllocationSuggestion, 0, len(ordered))
	for _, r := range ordered {
		if remaining == 0 {
			break
		}
		qty := min(r.Outstanding(), remaining)
		if qty <= 0 {
			continue
		}
		remaining -= qty
		suggestions = append(suggestions, domain.AllocationSuggestion{
			RequestID:         r.RequestID,
			PartnerID:         r.PartnerID,
			ItemID:            lot.ItemID,
			SuggestedQuantity: qty,
			MatchedFromItemID: r.MatchedFromItemID,
		})
	}
	return suggestions, nil
}

// sortByPriority orders requests into waterfall order.
func sortByPriority(reqs []domain.AllocationRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.RequestID < b.RequestID
	})
}
