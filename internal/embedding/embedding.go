// Package embedding wraps a Genkit embedder with the guarantees the
// knowledge graph needs: fixed output dimension, request throttling,
// and batch results that never lose positional alignment with their
// input texts.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Config controls provider behavior.
type Config struct {
	// Dimension is the vector size stored in the database. Vectors of
	// any other size are rejected rather than silently truncated.
	Dimension int

	// Timeout bounds each provider round trip.
	Timeout time.Duration

	// RatePerSecond throttles calls to the provider. Zero disables
	// throttling.
	RatePerSecond float64
}

// Provider generates embeddings through a Genkit ai.Embedder.
//
// Provider is safe for concurrent use. It holds no database resources,
// so callers never pin a connection across a model round trip.
type Provider struct {
	embedder  ai.Embedder
	dimension int
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewProvider creates a Provider.
func NewProvider(embedder ai.Embedder, cfg Config, logger *slog.Logger) (*Provider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Provider{
		embedder:  embedder,
		dimension: cfg.Dimension,
		timeout:   cfg.Timeout,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Dimension returns the vector size the provider enforces.
func (p *Provider) Dimension() int { return p.dimension }

// EmbedOne embeds a single text, typically a search query.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) != p.dimension {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vectors[0]), p.dimension)
	}
	return vectors[0], nil
}

// EmbedMany embeds a batch of texts. The result always has exactly one
// entry per input text: a vector when embedding succeeded and had the
// expected dimension, nil otherwise. A provider outage therefore
// yields an all-nil slice, never an error — embedding is best-effort
// and the caller's write path must not be blocked by it.
func (p *Provider) EmbedMany(ctx context.Context, texts []string) [][]float32 {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		p.logger.Warn("batch embedding failed", "texts", len(texts), "error", err)
		return results
	}

	for i, vec := range vectors {
		if len(vec) != p.dimension {
			p.logger.Warn("embedding dimension mismatch, dropping vector",
				"index", i, "got", len(vec), "want", p.dimension)
			continue
		}
		results[i] = vec
	}
	return results
}

// embed performs one throttled, timeout-bounded provider round trip.
func (p *Provider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	dim := int32(p.dimension)
	resp, err := p.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
