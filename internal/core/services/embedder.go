package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

// guardedEmbedder wraps an EmbeddingService with proactive throttling and a
// single retry with backoff. Whatever still fails afterwards is reported as
// domain.ErrUpstreamUnavailable.
type guardedEmbedder struct {
	svc     driven.EmbeddingService
	limiter *rate.Limiter
	backoff time.Duration
}

// newGuardedEmbedder creates a guard. ratePerSecond <= 0 disables throttling.
func newGuardedEmbedder(svc driven.EmbeddingService, ratePerSecond float64, backoff time.Duration) *guardedEmbedder {
	g := &guardedEmbedder{svc: svc, backoff: backoff}
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return g
}

// embed returns one vector for text.
func (g *guardedEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.do(ctx, func() error {
		v, err := g.svc.Embed(ctx, text)
		if err != nil {
			return err
		}
		if err := g.checkVector(v); err != nil {
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

// embedBatch returns one vector per text, in order.
func (g *guardedEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := g.do(ctx, func() error {
		v, err := g.svc.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrMalformedResponse, len(v), len(texts))
		}
		for i := range v {
			if err := g.checkVector(v[i]); err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
		}
		vecs = v
		return nil
	})
	return vecs, err
}

// do runs call, retrying once after the backoff when the failure is transient.
// Throttle and context failures are returned as they are: they say nothing
// about the provider.
func (g *guardedEmbedder) do(ctx context.Context, call func() error) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	err := call()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("embed: %w", ctx.Err())
	}
	if !isRetryable(err) {
		return upstreamError(err)
	}

	logger.Debug("Embedding call failed (%v), retrying in %s", err, g.backoff)
	timer := time.NewTimer(g.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("embed: %w", ctx.Err())
	case <-timer.C:
	}

	if err := g.wait(ctx); err != nil {
		return err
	}
	if err := call(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("embed: %w", ctx.Err())
		}
		return upstreamError(err)
	}
	return nil
}

// wait blocks until the limiter grants a call.
func (g *guardedEmbedder) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("embed: %w", ctx.Err())
		}
		return fmt.Errorf("embed: throttled: %w", err)
	}
	return nil
}

func (g *guardedEmbedder) checkVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty embedding", domain.ErrMalformedResponse)
	}
	if dims := g.svc.Dimensions(); dims > 0 && len(v) != dims {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrMalformedResponse, len(v), dims)
	}
	return nil
}

// isRetryable reports whether a second attempt could succeed.
// Malformed responses and configuration problems are deterministic.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrInvalidInput):
		return false
	default:
		return true
	}
}

func upstreamError(err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("embed: %w", err)
	}
	return fmt.Errorf("embed: %w: %w", domain.ErrUpstreamUnavailable, err)
}
