// Package ai provides the embedding provider boundary. The retrieval hot
// path never calls it synchronously; embeddings are computed at ingestion.
package ai

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/axisai/axismem/internal/errors"
	"github.com/axisai/axismem/internal/profile"
)

// EmbeddingService generates embedding vectors for content.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

type embeddingService struct {
	client     *openai.Client
	limiter    *rate.Limiter
	model      string
	dimensions int
}

// NewEmbeddingService creates an OpenAI-compatible embedding client.
// Requests are rate limited client-side to stay under provider quotas.
func NewEmbeddingService(p *profile.Profile) (EmbeddingService, error) {
	if p.EmbeddingAPIKey == "" {
		return nil, apperrors.InvalidArgument("embedding API key is required")
	}

	clientConfig := openai.DefaultConfig(p.EmbeddingAPIKey)
	if p.EmbeddingBaseURL != "" {
		clientConfig.BaseURL = p.EmbeddingBaseURL
	}

	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		model:      p.EmbeddingModel,
		dimensions: p.Dimension,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.InvalidArgument("no texts provided for embedding")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if err := validateVector(data.Embedding, s.dimensions); err != nil {
			return nil, err
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

func validateVector(v []float32, dimensions int) error {
	if len(v) != dimensions {
		return apperrors.DimensionMismatch(dimensions, len(v))
	}
	for _, val := range v {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return apperrors.InvalidArgument("embedding contains non-finite values")
		}
	}
	return nil
}
