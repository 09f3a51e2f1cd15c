package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

var (
	searchK       int
	searchGroup   int64
	searchCutoff  float64
	searchHard    float64
	searchExclude []int64
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Find catalog items matching a title",
	Long: `Embeds the title and returns the nearest indexed items by cosine distance.
Matches at or under the hard cutoff are near-identical and safe to associate;
the rest are soft and need review.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationBootstrap: levelEngine},
	RunE:        runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "maximum number of matches (default from config)")
	searchCmd.Flags().Int64Var(&searchGroup, "group", 0, "only match items of this donor offer")
	searchCmd.Flags().Float64Var(&searchCutoff, "cutoff", 0, "drop matches farther than this distance")
	searchCmd.Flags().Float64Var(&searchHard, "hard", 0, "hard match distance threshold")
	searchCmd.Flags().Int64SliceVar(&searchExclude, "exclude", nil, "item ids to leave out")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if matchingService == nil {
		return errNoMatching
	}

	q := domain.MatchQuery{
		Query:      args[0],
		K:          searchK,
		ExcludeIDs: searchExclude,
	}
	flags := cmd.Flags()
	if flags.Changed("group") {
		g := searchGroup
		q.GroupID = &g
	}
	if flags.Changed("cutoff") {
		c := searchCutoff
		q.DistanceCutoff = &c
	}
	if flags.Changed("hard") {
		h := searchHard
		q.HardCutoff = &h
	}

	results, err := matchingService.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, q.Query, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.MatchResult) error {
	if results == nil {
		results = []domain.MatchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, query string, results []domain.MatchResult) error {
	if len(results) == 0 {
		cmd.Println("No matches found.")
		return nil
	}

	cmd.Printf("Matches for %q:\n", query)
	cmd.Println()
	for i, r := range results {
		// Format: [N] #ID Title (group G)
		cmd.Printf("  [%d] #%d %s", i+1, r.ID, r.Title)
		if r.GroupID != nil {
			cmd.Printf(" (offer %d)", *r.GroupID)
		}
		cmd.Println()
		cmd.Printf("      %s  distance %.3f  similarity %.3f\n", r.Strength, r.Distance, r.Similarity)
	}
	return nil
}
