package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

var (
	itemsFile     string
	itemsJSON     bool
	removeIDs     []int64
	removeGroup   int64
	reindexBatch  int
	errNoMatching = errors.New("matching service not configured")
)

var itemsCmd = &cobra.Command{
	Use:         "items",
	Short:       "Manage the catalog index",
	Long:        `Add, modify, remove and rebuild the vector index entries for general items.`,
	Annotations: map[string]string{annotationBootstrap: levelEngine},
}

var itemsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Embed and index items",
	Long: `Embeds item titles and upserts them into the index. Re-adding an id
overwrites its entry.

The file holds a JSON array of entries:
  [{"id": 1, "title": "N95 masks", "groupId": 3}]

Use --file - to read from standard input.`,
	RunE: runItemsAdd,
}

var itemsModifyCmd = &cobra.Command{
	Use:   "modify",
	Short: "Patch indexed items",
	Long: `Applies partial updates to indexed entries. Titles are re-embedded only
when they change after normalisation.

The file holds a JSON array of patches:
  [{"id": 1, "title": "N95 respirator masks"}, {"id": 2, "clearGroup": true}]`,
	RunE: runItemsModify,
}

var itemsRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove items from the index",
	Long:  `Removes index entries by id, by donor offer group, or both.`,
	RunE:  runItemsRemove,
}

var itemsReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index from the catalog",
	Long: `Embeds every general item in the catalog and upserts it into the index.
Creates the vector collection if it does not exist yet.`,
	Annotations: map[string]string{annotationCreate: "true"},
	RunE:        runItemsReindex,
}

func init() {
	for _, c := range []*cobra.Command{itemsAddCmd, itemsModifyCmd} {
		c.Flags().StringVarP(&itemsFile, "file", "f", "", "JSON file to read (- for stdin)")
		c.MarkFlagRequired("file") //nolint:errcheck
	}
	itemsRemoveCmd.Flags().Int64SliceVar(&removeIDs, "ids", nil, "item ids to remove")
	itemsRemoveCmd.Flags().Int64Var(&removeGroup, "group", 0, "donor offer id whose items to remove")
	itemsReindexCmd.Flags().IntVar(&reindexBatch, "batch", 0, "items per batch (default max_batch_size)")
	for _, c := range []*cobra.Command{itemsAddCmd, itemsModifyCmd, itemsReindexCmd} {
		c.Flags().BoolVar(&itemsJSON, "json", false, "output the manifest as JSON")
	}

	itemsCmd.AddCommand(itemsAddCmd)
	itemsCmd.AddCommand(itemsModifyCmd)
	itemsCmd.AddCommand(itemsRemoveCmd)
	itemsCmd.AddCommand(itemsReindexCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsAdd(cmd *cobra.Command, _ []string) error {
	if matchingService == nil {
		return errNoMatching
	}

	var entries []domain.CatalogEntry
	if err := readJSONFile(cmd, itemsFile, &entries); err != nil {
		return err
	}

	manifest, err := matchingService.AddItems(cmd.Context(), entries)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	return outputManifest(cmd, "Indexed", manifest)
}

func runItemsModify(cmd *cobra.Command, _ []string) error {
	if matchingService == nil {
		return errNoMatching
	}

	var patches []domain.CatalogPatch
	if err := readJSONFile(cmd, itemsFile, &patches); err != nil {
		return err
	}

	manifest, err := matchingService.ModifyItems(cmd.Context(), patches)
	if err != nil {
		return fmt.Errorf("modify failed: %w", err)
	}
	return outputManifest(cmd, "Modified", manifest)
}

func runItemsRemove(cmd *cobra.Command, _ []string) error {
	if matchingService == nil {
		return errNoMatching
	}

	sel := domain.RemoveSelector{IDs: removeIDs}
	if cmd.Flags().Changed("group") {
		g := removeGroup
		sel.GroupID = &g
	}

	removed, err := matchingService.RemoveItems(cmd.Context(), sel)
	if err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	cmd.Printf("Removed %d index entries.\n", removed)
	return nil
}

func runItemsReindex(cmd *cobra.Command, _ []string) error {
	if matchingService == nil {
		return errNoMatching
	}

	manifest, err := matchingService.Reindex(cmd.Context(), reindexBatch)
	if outErr := outputManifest(cmd, "Reindexed", manifest); outErr != nil {
		return outErr
	}
	if err != nil {
		return fmt.Errorf("reindex stopped: %w", err)
	}
	return nil
}

func outputManifest(cmd *cobra.Command, verb string, m domain.BatchManifest) error {
	if itemsJSON {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal manifest: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%s %d items.\n", verb, len(m.Succeeded))
	if len(m.Failed) > 0 {
		cmd.Printf("%d failed:\n", len(m.Failed))
		for _, f := range m.Failed {
			cmd.Printf("  #%d: %v\n", f.ID, f.Err)
		}
	}
	return nil
}

// readJSONFile decodes path into v. A path of "-" reads the command's input.
func readJSONFile(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidInput, path, err)
	}
	return nil
}
