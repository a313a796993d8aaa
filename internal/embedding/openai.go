package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// OpenAIConfig configures the remote OpenAI-compatible embedder.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension is the vector length the model produces. Responses with a
	// different length are rejected.
	Dimension int
	Timeout   time.Duration
	// BatchSize is the number of texts sent per request.
	BatchSize int
	// Concurrency bounds the number of in-flight batch requests.
	Concurrency int
}

// OpenAI embeds text through an OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	client      *openai.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
}

// NewOpenAI creates the remote provider. The API key is read from the
// configured environment variable.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", ErrInvalidConfig, keyEnv)
	}
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("%w: dimension must be >= 1, got %d", ErrInvalidConfig, cfg.Dimension)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 32
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		dimension:   cfg.Dimension,
		batchSize:   batchSize,
		concurrency: concurrency,
	}, nil
}

// EmbedDocuments embeds a batch of document texts in order. Batches are
// requested with bounded concurrency; results keep input order.
func (e *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}

	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		start := start
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			batch, err := e.embed(ctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAI) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrGeneration, len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: model returned %d-dimensional vector, configured %d", ErrInvalidConfig, len(d.Embedding), e.dimension)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimension returns the fixed length of produced vectors.
func (e *OpenAI) Dimension() int { return e.dimension }

// Close is a no-op for the remote provider.
func (e *OpenAI) Close() error { return nil }
