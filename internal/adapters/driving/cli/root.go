// Package cli provides the supplymatch command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/app"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// annotationBootstrap names what a command needs built before it runs.
const (
	annotationBootstrap = "bootstrap"
	annotationCreate    = "create-collection"

	levelNone    = "none"
	levelConfig  = "config"
	levelCatalog = "catalog"
	levelEngine  = "engine"
)

var (
	configDir string
	verbose   bool
)

// Services used by commands. They are populated by the bootstrap before a
// command runs and may be replaced in tests.
var (
	settingsService   driving.SettingsService
	catalogStore      driven.Catalog
	matchingService   driving.MatchingService
	suggestionService driving.SuggestionService
	configWatcher     ConfigWatcher
	closeServices     = func() {}
)

// ConfigWatcher reports changes to the configuration file.
type ConfigWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// SettingsReloader applies new matching thresholds to a running service.
type SettingsReloader interface {
	UpdateSettings(settings domain.MatchSettings) error
}

// Services is what a bootstrap hands to the commands.
type Services struct {
	Settings   driving.SettingsService
	Catalog    driven.Catalog
	Matching   driving.MatchingService
	Suggestion driving.SuggestionService
	Watcher    ConfigWatcher
	Close      func()
}

// BootstrapRequest describes what a command needs.
type BootstrapRequest struct {
	ConfigDir        string
	Level            string
	CreateCollection bool
}

// BootstrapFunc builds the services for a command.
type BootstrapFunc func(ctx context.Context, req BootstrapRequest) (*Services, error)

var bootstrapFunc BootstrapFunc = appBootstrap

var rootCmd = &cobra.Command{
	Use:   "supplymatch",
	Short: "Semantic matching and allocation suggestions for donated supplies",
	Long: `supplymatch keeps a vector index of donated item titles, finds items that
mean the same thing ("N95 masks" and "n95 respirator masks"), and proposes
how available quantities could be split across partner requests.

Suggestions are advisory: nothing is reserved until staff commit them.`,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrapServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.supplymatch)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command. Cancelling ctx stops long-running
// commands such as serve.
func Execute(ctx context.Context) error {
	defer func() { closeServices() }()
	return rootCmd.ExecuteContext(ctx)
}

// SetBootstrap replaces how services are built.
func SetBootstrap(fn BootstrapFunc) {
	bootstrapFunc = fn
}

// requiredLevel walks up from cmd to find the nearest bootstrap annotation.
// Commands without one need nothing.
func requiredLevel(cmd *cobra.Command) (level string, create bool) {
	for c := cmd; c != nil; c = c.Parent() {
		if l, ok := c.Annotations[annotationBootstrap]; ok {
			return l, cmd.Annotations[annotationCreate] == "true"
		}
	}
	return levelNone, false
}

func bootstrapServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	level, create := requiredLevel(cmd)
	if level == levelNone {
		return nil
	}
	if bootstrapFunc == nil {
		return errors.New("no bootstrap configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := bootstrapFunc(ctx, BootstrapRequest{
		ConfigDir:        configDir,
		Level:            level,
		CreateCollection: create,
	})
	if err != nil {
		return err
	}
	useServices(svc)
	return nil
}

func useServices(svc *Services) {
	closeServices()
	settingsService = svc.Settings
	catalogStore = svc.Catalog
	matchingService = svc.Matching
	suggestionService = svc.Suggestion
	configWatcher = svc.Watcher
	closeServices = func() {}
	if svc.Close != nil {
		closeServices = svc.Close
	}
}

// appBootstrap builds services with the composition root.
func appBootstrap(ctx context.Context, req BootstrapRequest) (*Services, error) {
	var level app.Level
	switch req.Level {
	case levelConfig:
		level = app.LevelConfig
	case levelCatalog:
		level = app.LevelCatalog
	case levelEngine:
		level = app.LevelEngine
	default:
		return nil, fmt.Errorf("unknown bootstrap level %q", req.Level)
	}

	a, err := app.Bootstrap(ctx, app.Options{
		ConfigDir:        req.ConfigDir,
		Level:            level,
		CreateCollection: req.CreateCollection,
	})
	if err != nil {
		return nil, err
	}

	svc := &Services{
		Settings: a.Settings,
		Watcher:  a.Config,
		Close:    func() { a.Close() }, //nolint:errcheck
	}
	// Typed nils must not leak into the interfaces.
	if a.Catalog != nil {
		svc.Catalog = a.Catalog
	}
	if a.Matching != nil {
		svc.Matching = a.Matching
	}
	if a.Suggestion != nil {
		svc.Suggestion = a.Suggestion
	}
	return svc, nil
}
