package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, domain.ErrConfiguration},
		{403, domain.ErrConfiguration},
		{404, domain.ErrConfiguration},
		{400, domain.ErrInvalidInput},
		{422, domain.ErrInvalidInput},
		{429, domain.ErrUpstreamUnavailable},
		{500, domain.ErrUpstreamUnavailable},
		{503, domain.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := StatusError("openai", tt.status, []byte("boom"))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "openai")
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestStatusError_TruncatesBody(t *testing.T) {
	err := StatusError("ollama", 500, []byte(strings.Repeat("x", 2000)))
	assert.Less(t, len(err.Error()), 600)
}

func TestTransportError(t *testing.T) {
	err := TransportError("ollama", errors.New("connection refused"))
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))

	err = TransportError("ollama", fmt.Errorf("do: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestMalformedError(t *testing.T) {
	err := MalformedError("openai", "got %d embeddings", 3)
	assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
	assert.Contains(t, err.Error(), "got 3 embeddings")
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1}, ToFloat32([]float64{0.5, -1}))
	assert.Empty(t, ToFloat32(nil))
}
