// ABOUTME: OpenAI embedding backend with retry and dimension reduction
// ABOUTME: Reranking is encode-plus-cosine; no classifier or NLI support
package embed

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/florinutz/narra/internal/config"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/util"
	"github.com/florinutz/narra/internal/vmath"
)

// OpenAIBackend wraps the OpenAI embeddings API with retry logic
type OpenAIBackend struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dim        int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIBackend creates a backend from config. Returns an error when no
// API key is configured; callers fall back to the Unavailable backend.
func NewOpenAIBackend(cfg *config.Config) (*OpenAIBackend, error) {
	if cfg.OpenAIKey == "" {
		return nil, ErrUnavailable()
	}
	return &OpenAIBackend{
		client:     openai.NewClient(cfg.OpenAIKey),
		model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		dim:        cfg.EmbeddingDimension,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Encode embeds a batch of texts with exponential-backoff retries
func (b *OpenAIBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, narraerr.Wrap(narraerr.KindCancelled, ctx.Err(), "encode cancelled")
			case <-time.After(util.CalculateBackoff(b.retryDelay, attempt)):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
		resp, err := b.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input:      texts,
			Model:      b.model,
			Dimensions: b.dim,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("attempt %d: got %d embeddings for %d inputs", attempt+1, len(resp.Data), len(texts))
			continue
		}

		out := make([][]float32, len(texts))
		for _, d := range resp.Data {
			out[d.Index] = d.Embedding
		}
		return out, nil
	}

	return nil, narraerr.Wrap(narraerr.KindModel, lastErr,
		"failed to generate embeddings after %d attempts", b.maxRetries+1)
}

// Rerank embeds the query and docs together and scores by cosine similarity
func (b *OpenAIBackend) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	vecs, err := b.Encode(ctx, append([]string{query}, docs...))
	if err != nil {
		return nil, err
	}

	q := vecs[0]
	scores := make([]float64, len(docs))
	for i, v := range vecs[1:] {
		scores[i] = float64(vmath.CosineSimilarity(q, v))
	}
	return scores, nil
}

// Classify is not supported by the embeddings API
func (b *OpenAIBackend) Classify(ctx context.Context, texts []string, labels []string) ([][]ClassLabel, error) {
	return nil, ErrUnavailable()
}

// ExtractEntities is not supported by the embeddings API
func (b *OpenAIBackend) ExtractEntities(ctx context.Context, texts []string) ([][]Span, error) {
	return nil, ErrUnavailable()
}

// NLI is not supported by the embeddings API
func (b *OpenAIBackend) NLI(ctx context.Context, premise, hypothesis string) (float64, error) {
	return 0, ErrUnavailable()
}

// Dimension returns the configured vector width
func (b *OpenAIBackend) Dimension() int { return b.dim }

// Capabilities reports encode and rerank support
func (b *OpenAIBackend) Capabilities() Capabilities {
	return Capabilities{CanEncode: true, CanRerank: true}
}
