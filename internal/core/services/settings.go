package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedRate      = "embedding.rate_per_second"
	keyCollection     = "matching.collection"
	keyDefaultK       = "matching.default_k"
	keyHardCutoff     = "matching.hard_cutoff"
	keyDistanceCutoff = "matching.distance_cutoff"
	keyAutoHard       = "matching.auto_hard_cutoff"
	keyAutoDistance   = "matching.auto_distance_cutoff"
	keyMaxBatchSize   = "matching.max_batch_size"
	keyRetryBackoffMS = "matching.retry_backoff_ms"
	keyStorageDriver  = "storage.driver"
	keyStorageDSN     = "storage.dsn"
	keyVectorBackend  = "storage.vector_backend"
	keyCacheRedisURL  = "cache.redis_url"
	keyCacheTTLHours  = "cache.ttl_hours"
	envOpenAIAPIKey   = "OPENAI_API_KEY"
	defaultOllamaURL  = "http://localhost:11434"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
// OPENAI_API_KEY is used when OpenAI is configured without a key.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Embedding: domain.EmbeddingSettings{
			Provider:      s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			BaseURL:       s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:        s.configStore.GetString(keyEmbedAPIKey),
			RatePerSecond: s.getFloat(keyEmbedRate, defaults.Embedding.RatePerSecond),
		},
		Matching: domain.MatchSettings{
			Collection:         s.getString(keyCollection, defaults.Matching.Collection),
			DefaultK:           s.getInt(keyDefaultK, defaults.Matching.DefaultK),
			HardCutoff:         s.getFloat(keyHardCutoff, defaults.Matching.HardCutoff),
			DistanceCutoff:     s.getFloat(keyDistanceCutoff, defaults.Matching.DistanceCutoff),
			AutoHardCutoff:     s.getFloat(keyAutoHard, defaults.Matching.AutoHardCutoff),
			AutoDistanceCutoff: s.getFloat(keyAutoDistance, defaults.Matching.AutoDistanceCutoff),
			MaxBatchSize:       s.getInt(keyMaxBatchSize, defaults.Matching.MaxBatchSize),
			RetryBackoff: time.Duration(s.getInt(keyRetryBackoffMS,
				int(defaults.Matching.RetryBackoff/time.Millisecond))) * time.Millisecond,
		},
		Storage: domain.StorageSettings{
			Driver:        domain.StorageDriver(s.getString(keyStorageDriver, string(defaults.Storage.Driver))),
			DSN:           s.configStore.GetString(keyStorageDSN),
			VectorBackend: domain.VectorBackend(s.getString(keyVectorBackend, string(defaults.Storage.VectorBackend))),
		},
		Cache: domain.CacheSettings{
			RedisURL: s.configStore.GetString(keyCacheRedisURL),
			TTL:      time.Duration(s.getFloat(keyCacheTTLHours, defaults.Cache.TTL.Hours()) * float64(time.Hour)),
		},
	}

	// Model defaults follow the provider rather than the global default.
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])

	if settings.Embedding.APIKey == "" && settings.Embedding.Provider == domain.AIProviderOpenAI {
		settings.Embedding.APIKey = s.getenv(envOpenAIAPIKey)
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyEmbedRate, settings.Embedding.RatePerSecond},
		{keyCollection, settings.Matching.Collection},
		{keyDefaultK, settings.Matching.DefaultK},
		{keyHardCutoff, settings.Matching.HardCutoff},
		{keyDistanceCutoff, settings.Matching.DistanceCutoff},
		{keyAutoHard, settings.Matching.AutoHardCutoff},
		{keyAutoDistance, settings.Matching.AutoDistanceCutoff},
		{keyMaxBatchSize, settings.Matching.MaxBatchSize},
		{keyRetryBackoffMS, int(settings.Matching.RetryBackoff / time.Millisecond)},
		{keyStorageDriver, string(settings.Storage.Driver)},
		{keyStorageDSN, settings.Storage.DSN},
		{keyVectorBackend, string(settings.Storage.VectorBackend)},
		{keyCacheRedisURL, settings.Cache.RedisURL},
		{keyCacheTTLHours, settings.Cache.TTL.Hours()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("failed to save %s: %w", v.key, err)
		}
	}
	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(envOpenAIAPIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the configured settings can start the engine.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Embedding.Validate(); err != nil {
		return err
	}
	if err := settings.Matching.Validate(); err != nil {
		return err
	}
	switch settings.Storage.Driver {
	case domain.StorageSQLite:
	case domain.StoragePostgres:
		if settings.Storage.DSN == "" {
			return fmt.Errorf("%w: postgres storage requires storage.dsn", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", domain.ErrConfiguration, settings.Storage.Driver)
	}
	switch settings.Storage.VectorBackend {
	case domain.VectorBackendSQLite, domain.VectorBackendMemory:
	default:
		return fmt.Errorf("%w: unknown vector backend %q", domain.ErrConfiguration, settings.Storage.VectorBackend)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat distinguishes an explicit zero from an absent key: a zero
// cutoff is meaningful.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	// Unknown providers are kept so that Validate can report them.
	return domain.AIProvider(val)
}
