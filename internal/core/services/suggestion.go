package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

// Ensure SuggestionService implements the interface.
var _ driving.SuggestionService = (*SuggestionService)(nil)

// CandidateMatcher links items that have no requests of their own to
// semantically identical items that do. *MatchingService implements it.
type CandidateMatcher interface {
	Search(ctx context.Context, q domain.MatchQuery) ([]domain.MatchResult, error)
	ExactTitleMatches(ctx context.Context, title string, excludeID int64) ([]domain.MatchResult, error)
	Settings() domain.MatchSettings
}

// Ensure MatchingService can act as the candidate matcher.
var _ CandidateMatcher = (*MatchingService)(nil)

// SuggestionService computes advisory allocations over a point-in-time
// snapshot of supply and requests. It reserves nothing: the caller commits
// chosen suggestions transactionally and re-checks availability there.
type SuggestionService struct {
	catalog  driven.CatalogStore
	requests driven.RequestStore
	matcher  CandidateMatcher
	now      func() time.Time
	newRunID func() string
}

// NewSuggestionService creates a suggestion service.
// The matcher is optional; without it only exact requests are considered.
func NewSuggestionService(
	catalog driven.CatalogStore,
	requests driven.RequestStore,
	matcher CandidateMatcher,
) *SuggestionService {
	return &SuggestionService{
		catalog:  catalog,
		requests: requests,
		matcher:  matcher,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
}

// SuggestForOffer runs for every item of a donor offer.
func (s *SuggestionService) SuggestForOffer(ctx context.Context, offerID int64) (domain.SuggestionReport, error) {
	return s.Suggest(ctx, domain.SuggestionInput{DonorOfferID: &offerID})
}

// SuggestForItems runs for the given general items.
func (s *SuggestionService) SuggestForItems(ctx context.Context, itemIDs []int64) (domain.SuggestionReport, error) {
	return s.Suggest(ctx, domain.SuggestionInput{GeneralItemIDs: itemIDs})
}

// Suggest validates the selector before touching any store, resolves the
// items, and runs the waterfall for each item independently.
func (s *SuggestionService) Suggest(ctx context.Context, in domain.SuggestionInput) (domain.SuggestionReport, error) {
	logger.Section("Allocation Suggestion")
	if err := in.Validate(); err != nil {
		return domain.SuggestionReport{}, err
	}

	items, err := s.resolveItems(ctx, in)
	if err != nil {
		return domain.SuggestionReport{}, err
	}

	report := domain.SuggestionReport{
		RunID:       s.newRunID(),
		GeneratedAt: s.now().UTC(),
		Suggestions: []domain.AllocationSuggestion{},
		Items:       make([]domain.ItemReport, 0, len(items)),
	}
	logger.Debug("Run %s over %d items", report.RunID, len(items))

	// Items with their own open requests are allocated first, each against
	// its own snapshot. Items without any then share what those requests
	// still need, so a direct request is never crowded out by a matched
	// copy of itself.
	plans := make([]itemPlan, len(items))
	granted := make(map[int64]int64)
	for i, item := range items {
		requests, err := s.requests.OpenRequests(ctx, item.ID)
		if err != nil {
			return domain.SuggestionReport{}, fmt.Errorf("item %d: open requests: %w", item.ID, err)
		}
		plans[i] = itemPlan{report: newItemReport(item), direct: len(requests) > 0}
		if !plans[i].direct {
			continue
		}
		plans[i].suggestions = allocateItem(item, requests, &plans[i].report)
		grant(granted, plans[i].suggestions)
	}

	for i, item := range items {
		if plans[i].direct || s.matcher == nil {
			continue
		}
		requests, err := s.matchedRequests(ctx, item, &plans[i].report)
		if err != nil {
			return domain.SuggestionReport{}, fmt.Errorf("item %d: %w", item.ID, err)
		}
		for j := range requests {
			requests[j].QuantityFulfilled += granted[requests[j].RequestID]
		}
		plans[i].suggestions = allocateItem(item, requests, &plans[i].report)
		grant(granted, plans[i].suggestions)
	}

	for _, p := range plans {
		report.Items = append(report.Items, p.report)
		report.Suggestions = append(report.Suggestions, p.suggestions...)
	}

	logger.Info("Suggestions: %d across %d items", len(report.Suggestions), len(report.Items))
	return report, nil
}

// itemPlan collects one item's outcome while the passes run.
type itemPlan struct {
	direct      bool
	report      domain.ItemReport
	suggestions []domain.AllocationSuggestion
}

func newItemReport(item domain.GeneralItem) domain.ItemReport {
	return domain.ItemReport{
		ItemID:            item.ID,
		Title:             item.Title,
		QuantityAvailable: item.QuantityAvailable,
	}
}

func grant(granted map[int64]int64, suggestions []domain.AllocationSuggestion) {
	for _, sg := range suggestions {
		granted[sg.RequestID] += sg.SuggestedQuantity
	}
}

// resolveItems loads the items named by the input.
func (s *SuggestionService) resolveItems(ctx context.Context, in domain.SuggestionInput) ([]domain.GeneralItem, error) {
	if in.DonorOfferID != nil {
		items, err := s.catalog.ItemsForOffer(ctx, *in.DonorOfferID)
		if err != nil {
			return nil, fmt.Errorf("donor offer %d: %w", *in.DonorOfferID, err)
		}
		return items, nil
	}

	ids := uniqueIDs(in.GeneralItemIDs)
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: general item id must be positive, got %d", domain.ErrInvalidInput, id)
		}
	}
	items, err := s.catalog.GeneralItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("general items: %w", err)
	}
	return items, nil
}

// allocateItem runs the waterfall for one item. Snapshot validation
// failures abort only this item and are recorded in its report.
func allocateItem(
	item domain.GeneralItem, requests []domain.AllocationRequest, report *domain.ItemReport,
) []domain.AllocationSuggestion {
	logger.Debug("Item %d (%q): available=%d candidates=%d",
		item.ID, item.Title, item.QuantityAvailable, len(requests))

	suggestions, err := Allocate(item.SupplyLot(), requests)
	if err != nil {
		logger.Warn("Item %d aborted: %v", item.ID, err)
		report.Err = err
		report.Error = err.Error()
		return nil
	}
	for _, sg := range suggestions {
		report.Allocated += sg.SuggestedQuantity
	}
	return suggestions
}

// matchedRequests synthesises candidate requests from hard matches. Soft
// matches are recorded for review and never allocated. When the embedding
// provider is unavailable the item falls back to exact-title matches.
func (s *SuggestionService) matchedRequests(
	ctx context.Context, item domain.GeneralItem, report *domain.ItemReport,
) ([]domain.AllocationRequest, error) {
	settings := s.matcher.Settings()
	hard := settings.AutoHardCutoff
	var cutoff *float64
	if settings.AutoDistanceCutoff > 0 {
		c := settings.AutoDistanceCutoff
		cutoff = &c
	}

	matches, err := s.matcher.Search(ctx, domain.MatchQuery{
		Query:          item.Title,
		K:              settings.DefaultK,
		DistanceCutoff: cutoff,
		HardCutoff:     &hard,
		ExcludeIDs:     []int64{item.ID},
	})
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		logger.Warn("Matching unavailable for item %d, using exact titles: %v", item.ID, err)
		report.Degraded = true
		matches, err = s.matcher.ExactTitleMatches(ctx, item.Title, item.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("match candidates: %w", err)
	}

	var requests []domain.AllocationRequest
	for _, m := range matches {
		if !m.IsHard() {
			report.SoftMatches = append(report.SoftMatches, m)
			continue
		}
		report.HardMatches = append(report.HardMatches, m)

		open, err := s.requests.OpenRequests(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("open requests for match %d: %w", m.ID, err)
		}
		for _, r := range open {
			from := m.ID
			r.MatchedFromItemID = &from
			r.ItemID = item.ID
			requests = append(requests, r)
		}
	}
	return requests, nil
}

// uniqueIDs drops repeated ids, keeping first occurrence order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
