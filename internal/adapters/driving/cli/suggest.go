package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

var (
	suggestOffer int64
	suggestItems []int64
	suggestJSON  bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest how to allocate available supply",
	Long: `Proposes partner allocations for a donor offer (--offer) or for specific
general items (--items), filling HIGH, then MEDIUM, then LOW priority requests
in the order they were made.

Items with no requests of their own borrow requests from near-identical items.
Nothing is reserved; the suggestion is advisory.`,
	Annotations: map[string]string{annotationBootstrap: levelEngine},
	RunE:        runSuggest,
}

func init() {
	suggestCmd.Flags().Int64Var(&suggestOffer, "offer", 0, "donor offer id")
	suggestCmd.Flags().Int64SliceVar(&suggestItems, "items", nil, "general item ids")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output the report as JSON")
	suggestCmd.MarkFlagsMutuallyExclusive("offer", "items")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	if suggestionService == nil {
		return errors.New("suggestion service not configured")
	}

	var in domain.SuggestionInput
	if cmd.Flags().Changed("offer") {
		id := suggestOffer
		in.DonorOfferID = &id
	}
	in.GeneralItemIDs = suggestItems

	report, err := suggestionService.Suggest(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("suggest failed: %w", err)
	}

	if suggestJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	outputReport(cmd, report)
	return nil
}

func outputReport(cmd *cobra.Command, report domain.SuggestionReport) {
	cmd.Printf("Run %s (%s)\n", report.RunID, report.GeneratedAt.Format(time.RFC3339))

	for _, item := range report.Items {
		cmd.Println()
		cmd.Printf("Item #%d %s: %d available, %d suggested\n",
			item.ItemID, item.Title, item.QuantityAvailable, item.Allocated)
		if item.Error != "" {
			cmd.Printf("  skipped: %s\n", item.Error)
			continue
		}
		if item.Degraded {
			cmd.Println("  matching unavailable, exact titles used")
		}

		n := 0
		for _, s := range report.Suggestions {
			if s.ItemID != item.ItemID {
				continue
			}
			n++
			cmd.Printf("  request %d  partner %d  qty %d", s.RequestID, s.PartnerID, s.SuggestedQuantity)
			if s.MatchedFromItemID != nil {
				cmd.Printf("  (via item #%d)", *s.MatchedFromItemID)
			}
			cmd.Println()
		}
		if n == 0 {
			cmd.Println("  no open requests")
		}
		for _, m := range item.SoftMatches {
			cmd.Printf("  review: #%d %s (distance %.3f)\n", m.ID, m.Title, m.Distance)
		}
	}
}
