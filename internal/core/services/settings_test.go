package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// mockAIValidator records the settings it was asked to validate.
type mockAIValidator struct {
	got *domain.EmbeddingSettings
	err error
}

func (m *mockAIValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	m.got = config
	return m.err
}

func newTestSettingsService(values map[string]any, env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore(values)
	service := NewSettingsService(store, nil)
	service.getenv = func(k string) string { return env[k] }
	return service, store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, service.GetDefaults(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	service, _ := newTestSettingsService(map[string]any{
		"embedding.provider":            "openai",
		"embedding.rate_per_second":     int64(5),
		"matching.collection":           "items",
		"matching.default_k":            int64(3),
		"matching.hard_cutoff":          0.12,
		"matching.distance_cutoff":      0.5,
		"matching.auto_hard_cutoff":     int64(0),
		"matching.auto_distance_cutoff": 0.3,
		"matching.max_batch_size":       int64(64),
		"matching.retry_backoff_ms":     int64(500),
		"storage.driver":                "postgres",
		"storage.dsn":                   "postgres://localhost/supply",
		"storage.vector_backend":        "memory",
		"cache.redis_url":               "redis://localhost:6379/0",
		"cache.ttl_hours":               int64(2),
	}, map[string]string{"OPENAI_API_KEY": "sk-env"})

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.InDelta(t, 5.0, settings.Embedding.RatePerSecond, 1e-9)

	m := settings.Matching
	assert.Equal(t, "items", m.Collection)
	assert.Equal(t, 3, m.DefaultK)
	assert.InDelta(t, 0.12, m.HardCutoff, 1e-9)
	assert.InDelta(t, 0.5, m.DistanceCutoff, 1e-9)
	assert.Zero(t, m.AutoHardCutoff, "explicit zero is kept")
	assert.InDelta(t, 0.3, m.AutoDistanceCutoff, 1e-9)
	assert.Equal(t, 64, m.MaxBatchSize)
	assert.Equal(t, 500*time.Millisecond, m.RetryBackoff)

	assert.Equal(t, domain.StoragePostgres, settings.Storage.Driver)
	assert.Equal(t, domain.VectorBackendMemory, settings.Storage.VectorBackend)
	assert.Equal(t, "redis://localhost:6379/0", settings.Cache.RedisURL)
	assert.Equal(t, 2*time.Hour, settings.Cache.TTL)
}

func TestSettingsService_ConfiguredKeyBeatsEnvironment(t *testing.T) {
	service, _ := newTestSettingsService(map[string]any{
		"embedding.provider": "openai",
		"embedding.api_key":  "sk-file",
	}, map[string]string{"OPENAI_API_KEY": "sk-env"})

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "sk-file", settings.Embedding.APIKey)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	service, store := newTestSettingsService(nil, nil)
	settings := service.GetDefaults()
	settings.Matching.HardCutoff = 0.2
	settings.Matching.DistanceCutoff = 0
	settings.Matching.RetryBackoff = time.Second
	settings.Cache.TTL = 36 * time.Hour

	require.NoError(t, service.Save(&settings))
	loaded, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, settings, *loaded)
	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	t.Run("ollama gets local url and default model", func(t *testing.T) {
		service, _ := newTestSettingsService(nil, nil)
		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
		assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	})

	t.Run("openai clears base url", func(t *testing.T) {
		service, _ := newTestSettingsService(map[string]any{"embedding.base_url": "http://localhost:11434"}, nil)
		require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-large", "sk-x"))

		settings, err := service.Get()
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
		assert.Empty(t, settings.Embedding.BaseURL)
		assert.Equal(t, "sk-x", settings.Embedding.APIKey)
	})

	t.Run("openai requires a key", func(t *testing.T) {
		service, _ := newTestSettingsService(nil, nil)
		err := service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("unknown provider", func(t *testing.T) {
		service, _ := newTestSettingsService(nil, nil)
		err := service.SetEmbeddingProvider("cohere", "", "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		ok     bool
	}{
		{"defaults", nil, true},
		{"unknown provider", map[string]any{"embedding.provider": "cohere"}, false},
		{"openai without key", map[string]any{"embedding.provider": "openai"}, false},
		{"negative cutoff", map[string]any{"matching.hard_cutoff": -0.1}, false},
		{"postgres without dsn", map[string]any{"storage.driver": "postgres"}, false},
		{"unknown driver", map[string]any{"storage.driver": "mysql"}, false},
		{"unknown vector backend", map[string]any{"storage.vector_backend": "faiss"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestSettingsService(tt.values, nil)
			err := service.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
		})
	}
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	service, _ := newTestSettingsService(nil, nil)
	assert.NoError(t, service.ValidateEmbeddingConfig(), "no validator configured")

	validator := &mockAIValidator{err: domain.ErrUpstreamUnavailable}
	service.aiValidator = validator

	err := service.ValidateEmbeddingConfig()

	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	require.NotNil(t, validator.got)
	assert.Equal(t, domain.AIProviderOllama, validator.got.Provider)
}
