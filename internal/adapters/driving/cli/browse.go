package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [title]",
	Short: "Browse catalog matches interactively",
	Long: `Open an interactive terminal browser over the catalog index.

Type an item title to list its nearest catalog items, marked hard or soft.
Select a match and press s to preview allocation suggestions for it.

An optional title argument is matched as soon as the browser opens.`,
	Example: `  supplymatch browse
  supplymatch browse "box of n95 masks"`,
	Annotations: map[string]string{annotationBootstrap: levelEngine},
	RunE:        runBrowse,
}

// runBrowser starts the program; tests replace it to avoid a terminal.
var runBrowser = func(app *tui.App) error {
	return app.Run()
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	app, err := tui.NewApp(&tui.Ports{
		Matching:   matchingService,
		Suggestion: suggestionService,
	})
	if err != nil {
		return err
	}

	app.WithContext(cmd.Context()).WithQuery(strings.Join(args, " "))
	return runBrowser(app)
}
