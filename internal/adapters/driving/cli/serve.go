package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the matching and suggestion API over HTTP.

Routes:
  POST   /api/items                      add items
  PATCH  /api/items                      modify items
  DELETE /api/items                      remove items
  GET    /api/search?q=...               search the catalog
  GET    /api/offers/{id}/suggestions    suggest for a donor offer
  POST   /api/suggestions                suggest for an offer or items
  GET    /healthz                        liveness

Edits to the matching section of config.toml apply without a restart.`,
	Annotations: map[string]string{annotationBootstrap: levelEngine},
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int("rate-limit", 0, "requests per minute per client on /api (0 = unlimited)")
	serveCmd.Flags().Bool("access-log", false, "log every request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if matchingService == nil {
		return errNoMatching
	}
	flags := cmd.Flags()
	addr, err := flags.GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	rate, err := flags.GetInt("rate-limit")
	if err != nil {
		return fmt.Errorf("getting rate-limit flag: %w", err)
	}
	accessLog, err := flags.GetBool("access-log")
	if err != nil {
		return fmt.Errorf("getting access-log flag: %w", err)
	}

	server, err := httpapi.New(httpapi.Ports{
		Matching:   matchingService,
		Suggestion: suggestionService,
	}, httpapi.Config{
		RequestsPerMinute: rate,
		AccessLog:         accessLog,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go watchSettings(ctx)

	cmd.Printf("HTTP API listening on %s\n", addr)
	return server.Serve(ctx, addr)
}

// watchSettings reloads matching thresholds when the config file changes.
// It returns quietly when reloading is not possible.
func watchSettings(ctx context.Context) {
	reloader, ok := matchingService.(SettingsReloader)
	if !ok || configWatcher == nil || settingsService == nil {
		return
	}
	err := configWatcher.Watch(ctx, func() {
		reloadSettings(reloader)
	})
	if err != nil {
		logger.Warn("Config reload disabled: %v", err)
	}
}

func reloadSettings(reloader SettingsReloader) {
	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("Reading settings: %v", err)
		return
	}
	if err := reloader.UpdateSettings(settings.Matching); err != nil {
		logger.Warn("Keeping previous matching settings: %v", err)
	}
}
