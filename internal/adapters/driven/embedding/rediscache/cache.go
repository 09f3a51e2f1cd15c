// Package rediscache caches embedding vectors in Redis in front of a
// provider. Re-indexing an unchanged catalog then costs no provider calls.
//
// The cache is best effort: Redis failures are logged and the call falls
// through to the provider.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const keyPrefix = "supplymatch:emb:"

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// EmbeddingService decorates a provider with a Redis cache.
type EmbeddingService struct {
	inner  driven.EmbeddingService
	client redis.UniversalClient
	ttl    time.Duration
}

// New wraps inner. A zero ttl keeps entries until Redis evicts them.
func New(inner driven.EmbeddingService, client redis.UniversalClient, ttl time.Duration) *EmbeddingService {
	return &EmbeddingService{inner: inner, client: client, ttl: ttl}
}

// Embed returns the cached vector for text, embedding it on a miss.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
		if vec, ok := s.decode(data); ok {
			return vec, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("Embedding cache read failed: %v", err)
	}

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, key, encode(vec), s.ttl).Err(); err != nil {
		logger.Warn("Embedding cache write failed: %v", err)
	}
	return vec, nil
}

// EmbedBatch serves hits from the cache and embeds the misses in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = s.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("Embedding cache read failed: %v", err)
		vals = nil
	}
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(vals) {
			if str, ok := vals[i].(string); ok {
				if vec, ok := s.decode([]byte(str)); ok {
					out[i] = vec
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	logger.Debug("Embedding cache: %d hits, %d misses", len(texts)-len(missIdx), len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	fresh, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		// Let the caller's length check report it.
		return fresh, nil
	}

	pipe := s.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		pipe.Set(ctx, keys[i], encode(fresh[j]), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("Embedding cache write failed: %v", err)
	}
	return out, nil
}

// Dimensions returns the provider's dimensions.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the provider's model.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the provider. The cache is optional and not pinged.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the provider and the Redis client.
func (s *EmbeddingService) Close() error {
	return errors.Join(s.inner.Close(), s.client.Close())
}

// key scopes entries by model so that switching models never serves
// vectors from another embedding space.
func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + s.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) decode(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	if dims := s.inner.Dimensions(); dims > 0 && len(vec) != dims {
		return nil, false
	}
	return vec, true
}

func encode(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
