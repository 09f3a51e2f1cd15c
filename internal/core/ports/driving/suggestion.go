package driving

import (
	"context"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// SuggestionService proposes partner-level distributions of available supply.
// Results are advisory; nothing is reserved.
type SuggestionService interface {
	// Suggest runs for either a donor offer or a list of items, not both.
	Suggest(ctx context.Context, in domain.SuggestionInput) (domain.SuggestionReport, error)

	// SuggestForOffer runs for every item of a donor offer.
	SuggestForOffer(ctx context.Context, offerID int64) (domain.SuggestionReport, error)

	// SuggestForItems runs for the given general items.
	SuggestForItems(ctx context.Context, itemIDs []int64) (domain.SuggestionReport, error)
}
