package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// SearchCatalogInput is the input schema for the search_catalog tool.
type SearchCatalogInput struct {
	Query          string   `json:"query" jsonschema:"free-text item title to match, e.g. 'n95 masks'"`
	K              int      `json:"k,omitempty" jsonschema:"maximum number of matches (default from configuration)"`
	GroupID        *int64   `json:"group_id,omitempty" jsonschema:"restrict matches to items of this donor offer"`
	DistanceCutoff *float64 `json:"distance_cutoff,omitempty" jsonschema:"drop matches farther than this cosine distance"`
	HardCutoff     *float64 `json:"hard_cutoff,omitempty" jsonschema:"distance at or under which a match is hard"`
	ExcludeIDs     []int64  `json:"exclude_ids,omitempty" jsonschema:"item ids to leave out"`
}

// SearchCatalogOutput is the output schema for the search_catalog tool.
type SearchCatalogOutput struct {
	Matches []MatchOutput `json:"matches"`
	Count   int           `json:"count"`
}

// MatchOutput represents a single catalog match.
type MatchOutput struct {
	ItemID     int64   `json:"item_id"`
	Title      string  `json:"title"`
	GroupID    *int64  `json:"group_id,omitempty"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
	Strength   string  `json:"strength"`
}

// SuggestAllocationsInput is the input schema for the suggest_allocations tool.
type SuggestAllocationsInput struct {
	DonorOfferID   *int64  `json:"donor_offer_id,omitempty" jsonschema:"distribute every item of this donor offer"`
	GeneralItemIDs []int64 `json:"general_item_ids,omitempty" jsonschema:"distribute these items (exclusive with donor_offer_id)"`
}

// SuggestAllocationsOutput is the output schema for the suggest_allocations tool.
type SuggestAllocationsOutput struct {
	RunID       string              `json:"run_id"`
	GeneratedAt string              `json:"generated_at"`
	Suggestions []SuggestionOutput  `json:"suggestions"`
	Items       []ItemSummaryOutput `json:"items"`
}

// SuggestionOutput is one advisory quantity for a partner request.
type SuggestionOutput struct {
	RequestID         int64  `json:"request_id"`
	PartnerID         int64  `json:"partner_id"`
	ItemID            int64  `json:"item_id"`
	SuggestedQuantity int64  `json:"suggested_quantity"`
	MatchedFromItemID *int64 `json:"matched_from_item_id,omitempty"`
}

// ItemSummaryOutput reports how one item was distributed.
type ItemSummaryOutput struct {
	ItemID            int64   `json:"item_id"`
	Title             string  `json:"title"`
	QuantityAvailable int64   `json:"quantity_available"`
	Allocated         int64   `json:"allocated"`
	HardMatchIDs      []int64 `json:"hard_match_ids,omitempty"`
	SoftMatchIDs      []int64 `json:"soft_match_ids,omitempty"`
	Degraded          bool    `json:"degraded,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_catalog",
		Description: "Find catalog items whose titles mean the same as the query. " +
			"Hard matches are near-identical; soft matches need human review.",
	}, s.handleSearchCatalog)

	if s.ports.Suggestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name: "suggest_allocations",
			Description: "Propose how available donated quantities could be split across partner " +
				"requests, highest priority first. Advisory only; nothing is reserved.",
		}, s.handleSuggestAllocations)
	}
}

// handleSearchCatalog handles the search_catalog tool invocation.
func (s *Server) handleSearchCatalog(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchCatalogInput,
) (*mcp.CallToolResult, SearchCatalogOutput, error) {
	results, err := s.ports.Matching.Search(ctx, domain.MatchQuery{
		Query:          input.Query,
		K:              input.K,
		GroupID:        input.GroupID,
		DistanceCutoff: input.DistanceCutoff,
		HardCutoff:     input.HardCutoff,
		ExcludeIDs:     input.ExcludeIDs,
	})
	if err != nil {
		return nil, SearchCatalogOutput{}, err
	}

	output := SearchCatalogOutput{
		Matches: make([]MatchOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Matches[i] = MatchOutput{
			ItemID:     r.ID,
			Title:      r.Title,
			GroupID:    r.GroupID,
			Distance:   r.Distance,
			Similarity: r.Similarity,
			Strength:   r.Strength.String(),
		}
	}

	return nil, output, nil
}

// handleSuggestAllocations handles the suggest_allocations tool invocation.
func (s *Server) handleSuggestAllocations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestAllocationsInput,
) (*mcp.CallToolResult, SuggestAllocationsOutput, error) {
	report, err := s.ports.Suggestion.Suggest(ctx, domain.SuggestionInput{
		DonorOfferID:   input.DonorOfferID,
		GeneralItemIDs: input.GeneralItemIDs,
	})
	if err != nil {
		return nil, SuggestAllocationsOutput{}, err
	}

	output := SuggestAllocationsOutput{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Suggestions: make([]SuggestionOutput, len(report.Suggestions)),
		Items:       make([]ItemSummaryOutput, len(report.Items)),
	}
	for i, sg := range report.Suggestions {
		output.Suggestions[i] = SuggestionOutput{
			RequestID:         sg.RequestID,
			PartnerID:         sg.PartnerID,
			ItemID:            sg.ItemID,
			SuggestedQuantity: sg.SuggestedQuantity,
			MatchedFromItemID: sg.MatchedFromItemID,
		}
	}
	for i, it := range report.Items {
		output.Items[i] = ItemSummaryOutput{
			ItemID:            it.ItemID,
			Title:             it.Title,
			QuantityAvailable: it.QuantityAvailable,
			Allocated:         it.Allocated,
			HardMatchIDs:      matchIDs(it.HardMatches),
			SoftMatchIDs:      matchIDs(it.SoftMatches),
			Degraded:          it.Degraded,
			Error:             it.Error,
		}
	}
	return nil, output, nil
}

func matchIDs(matches []domain.MatchResult) []int64 {
	if len(matches) == 0 {
		return nil
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}
