package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/ai"
	"github.com/custodia-labs/supplymatch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/supplymatch/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/supplymatch/internal/adapters/driven/storage/sqlite"
	memoryvector "github.com/custodia-labs/supplymatch/internal/adapters/driven/vector/memory"
	sqlitevector "github.com/custodia-labs/supplymatch/internal/adapters/driven/vector/sqlite"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/services"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

const (
	dataDirName    = "data"
	vectorFileName = "vectors.db"
)

// Level is how much of the application a command needs.
type Level int

// Bootstrap levels, each including the previous one.
const (
	// LevelConfig loads the configuration file and settings only.
	LevelConfig Level = iota + 1

	// LevelCatalog also opens the relational store.
	LevelCatalog

	// LevelEngine also opens the vector index and the embedding provider.
	LevelEngine
)

// Options configures Bootstrap.
type Options struct {
	// ConfigDir holds config.toml and the data directory.
	// Empty uses ~/.supplymatch.
	ConfigDir string

	// Level selects what to construct.
	Level Level

	// CreateCollection creates a missing vector collection.
	CreateCollection bool
}

// App holds the constructed components. Fields beyond the requested level
// are nil.
type App struct {
	Config     *file.ConfigStore
	Settings   *services.SettingsService
	Catalog    driven.Catalog
	Index      driven.CatalogIndex
	Matching   *services.MatchingService
	Suggestion *services.SuggestionService

	// Warnings are non-fatal issues found while starting.
	Warnings []string

	closers []func() error
}

// Bootstrap builds the application up to opts.Level.
// On error, everything opened so far is closed.
func Bootstrap(ctx context.Context, opts Options) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Config, err = file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	a.Settings = services.NewSettingsService(a.Config, ai.NewConfigValidator())
	if opts.Level < LevelCatalog {
		return a, nil
	}

	settings, err := a.Settings.Get()
	if err != nil {
		return nil, err
	}
	dataDir := filepath.Join(filepath.Dir(a.Config.Path()), dataDirName)

	a.Catalog, err = OpenCatalog(ctx, settings.Storage, dataDir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Catalog.Close)
	if opts.Level < LevelEngine {
		return a, nil
	}

	if err := a.Settings.Validate(); err != nil {
		return nil, err
	}

	a.Index, err = OpenIndex(settings, dataDir, opts.CreateCollection)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Index.Close)

	embed, err := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding, settings.Cache)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { embed.Close(); return nil })
	a.Warnings = append(a.Warnings, embed.Warnings...)
	for _, w := range embed.Warnings {
		logger.Warn("%s", w)
	}

	a.Matching, err = services.NewMatchingService(
		a.Index, a.Catalog, embed.EmbeddingService, settings.Matching, settings.Embedding.RatePerSecond)
	if err != nil {
		return nil, err
	}
	a.Suggestion = services.NewSuggestionService(a.Catalog, a.Catalog, a.Matching)

	if settings.Storage.VectorBackend == domain.VectorBackendMemory {
		a.warmMemoryIndex(ctx)
	}

	return a, nil
}

// warmMemoryIndex fills the in-process index from the catalog. Failures
// leave the index partial; the post-filter keeps results consistent.
func (a *App) warmMemoryIndex(ctx context.Context) {
	manifest, err := a.Matching.Reindex(ctx, 0)
	if err != nil {
		a.Warnings = append(a.Warnings, fmt.Sprintf("memory index warm-up stopped: %v", err))
		logger.Warn("Memory index warm-up stopped: %v", err)
		return
	}
	if n := len(manifest.Failed); n > 0 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("%d items could not be indexed at startup", n))
	}
}

// Close releases everything Bootstrap opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenCatalog opens the relational store selected by settings. An empty
// SQLite DSN uses catalog.db under dataDir.
func OpenCatalog(ctx context.Context, settings domain.StorageSettings, dataDir string) (driven.Catalog, error) {
	switch settings.Driver {
	case domain.StorageSQLite, "":
		open := func() (*sqlite.Store, error) { return sqlite.NewStore(dataDir) }
		if settings.DSN != "" {
			open = func() (*sqlite.Store, error) { return sqlite.Open(settings.DSN) }
		}
		store, err := open()
		if err != nil {
			return nil, err
		}
		return store, nil
	case domain.StoragePostgres:
		if settings.DSN == "" {
			return nil, fmt.Errorf("%w: postgres storage requires storage.dsn", domain.ErrConfiguration)
		}
		store, err := postgres.Open(ctx, settings.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrConfiguration, settings.Driver)
	}
}

// OpenIndex opens the vector collection selected by settings. The memory
// backend always starts empty, so create is implied.
func OpenIndex(settings *domain.Settings, dataDir string, create bool) (driven.CatalogIndex, error) {
	switch settings.Storage.VectorBackend {
	case domain.VectorBackendSQLite, "":
		idx, err := sqlitevector.Open(sqlitevector.Options{
			Path:       filepath.Join(dataDir, vectorFileName),
			Collection: settings.Matching.Collection,
			Create:     create,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	case domain.VectorBackendMemory:
		return memoryvector.NewIndex(), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrConfiguration, settings.Storage.VectorBackend)
	}
}
