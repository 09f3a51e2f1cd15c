// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/supplymatch/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/supplymatch/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/supplymatch/internal/adapters/driven/embedding/rediscache"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of embedding service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	Warnings         []string // Non-fatal issues found while starting.
	Cached           bool     // True if the Redis cache is in front of the provider.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
}

// CreateAndValidateEmbeddingService creates the embedding service, puts the
// optional cache in front of it and pings the provider.
//
// Configuration problems (unknown provider, missing key, rejected key) are
// fatal. An unreachable provider or cache is only a warning: the engine can
// still serve degraded suggestions and the provider may come back.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings, cache domain.CacheSettings,
) (*InitResult, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, err
	}
	result := &InitResult{EmbeddingService: svc}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			svc.Close()
			return nil, fmt.Errorf("%w. Run 'supplymatch config embedding' to fix", err)
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is unreachable (%v); matching will degrade until it recovers", svc.ModelName(), err))
	}

	if cache.RedisURL != "" {
		client, err := rediscache.NewClient(pingCtx, cache.RedisURL)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("embedding cache disabled: %v", err))
		} else {
			result.EmbeddingService = rediscache.New(svc, client, cache.TTL)
			result.Cached = true
		}
	}

	return result, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Settings that cannot produce a service are a domain.ErrConfiguration.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: %w: no embedding settings", domain.ErrConfiguration, domain.ErrEmbeddingUnavailable)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
