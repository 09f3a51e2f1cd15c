package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// RatePerSecond throttles outbound embedding calls. Zero disables throttling.
	RatePerSecond float64
}

// Validate reports why the provider cannot be constructed.
func (e EmbeddingSettings) Validate() error {
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, e.Provider)
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return fmt.Errorf("%w: %s requires an API key", ErrConfiguration, e.Provider)
	}
	return nil
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Validate() == nil
}

// MatchSettings tunes the matching engine. The cutoffs are empirical and
// depend on the embedding model; they are configuration, not constants.
type MatchSettings struct {
	// Collection names the vector index collection.
	Collection string

	// DefaultK is used when a query does not set K.
	DefaultK int

	// HardCutoff is the distance at or under which a match is hard.
	HardCutoff float64

	// DistanceCutoff drops results farther than this. Zero means no cutoff.
	DistanceCutoff float64

	// AutoHardCutoff is the hard threshold used when synthesising requests
	// for items that have none of their own.
	AutoHardCutoff float64

	// AutoDistanceCutoff bounds the candidates considered for auto-association.
	AutoDistanceCutoff float64

	// MaxBatchSize bounds add/modify batches.
	MaxBatchSize int

	// RetryBackoff is the wait before the single embedding retry.
	RetryBackoff time.Duration
}

// Validate checks the thresholds are coherent.
func (m MatchSettings) Validate() error {
	if m.Collection == "" {
		return fmt.Errorf("%w: matching collection name is empty", ErrConfiguration)
	}
	if m.DefaultK <= 0 {
		return fmt.Errorf("%w: default_k must be positive", ErrConfiguration)
	}
	for _, c := range []float64{m.HardCutoff, m.DistanceCutoff, m.AutoHardCutoff, m.AutoDistanceCutoff} {
		if !validCutoff(c) {
			return fmt.Errorf("%w: cutoffs must be finite and non-negative", ErrConfiguration)
		}
	}
	if m.AutoDistanceCutoff > 0 && m.AutoHardCutoff > m.AutoDistanceCutoff {
		return fmt.Errorf("%w: auto_hard_cutoff exceeds auto_distance_cutoff", ErrConfiguration)
	}
	if m.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max_batch_size must be positive", ErrConfiguration)
	}
	return nil
}

// DistanceCutoffPtr returns the cutoff as an optional value.
func (m MatchSettings) DistanceCutoffPtr() *float64 {
	if m.DistanceCutoff <= 0 {
		return nil
	}
	c := m.DistanceCutoff
	return &c
}

// StorageDriver selects the relational store adapter.
type StorageDriver string

// Available storage drivers.
const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// VectorBackend selects the vector index adapter.
type VectorBackend string

// Available vector backends.
const (
	VectorBackendSQLite VectorBackend = "sqlite"
	VectorBackendMemory VectorBackend = "memory"
)

// StorageSettings holds relational and vector store configuration.
type StorageSettings struct {
	Driver        StorageDriver
	DSN           string
	VectorBackend VectorBackend
}

// CacheSettings configures the optional embedding cache.
type CacheSettings struct {
	// RedisURL enables the Redis embedding cache when set.
	RedisURL string

	// TTL is how long cached vectors live.
	TTL time.Duration
}

// Settings holds all application settings.
type Settings struct {
	Embedding EmbeddingSettings
	Matching  MatchSettings
	Storage   StorageSettings
	Cache     CacheSettings
}

// DefaultSettings returns settings with sensible defaults.
// The embedding provider defaults to a local Ollama instance.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
		},
		Matching: DefaultMatchSettings(),
		Storage: StorageSettings{
			Driver:        StorageSQLite,
			VectorBackend: VectorBackendSQLite,
		},
		Cache: CacheSettings{
			TTL: 30 * 24 * time.Hour,
		},
	}
}

// DefaultMatchSettings returns the default matching thresholds.
func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		Collection:         "catalog",
		DefaultK:           10,
		HardCutoff:         0.1,
		AutoHardCutoff:     0.08,
		AutoDistanceCutoff: 0.35,
		MaxBatchSize:       256,
		RetryBackoff:       250 * time.Millisecond,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
