//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig holds configuration for the local ONNX provider.
type FastEmbedConfig struct {
	// Model is the embedding model name. Defaults to
	// sentence-transformers/all-MiniLM-L6-v2.
	Model string
	// CacheDir is where model files are cached.
	CacheDir string
	// Dimension is the expected vector dimension; it must match the model.
	Dimension int
}

// FastEmbed generates embeddings with a local ONNX model. Initialization
// downloads and loads the model, so it happens once per process.
type FastEmbed struct {
	model     *fastembed.FlagEmbedding
	dimension int
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

var fastEmbedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
}

// NewFastEmbed creates the local provider. The configured dimension must
// match the model's native dimension.
func NewFastEmbed(cfg FastEmbedConfig) (*FastEmbed, error) {
	name := cfg.Model
	if name == "" {
		name = "sentence-transformers/all-MiniLM-L6-v2"
	}
	model, ok := fastEmbedModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, name)
	}
	dim := fastEmbedDimensions[model]
	if cfg.Dimension != 0 && cfg.Dimension != dim {
		return nil, fmt.Errorf("%w: model %s produces %d-dimensional vectors, configured %d", ErrInvalidConfig, name, dim, cfg.Dimension)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: initializing fastembed: %v", ErrGeneration, err)
	}

	return &FastEmbed{model: flagEmbed, dimension: dim}, nil
}

// EmbedDocuments embeds a batch of document texts in order.
func (e *FastEmbed) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := e.model.PassageEmbed(texts, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *FastEmbed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vector, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return vector, nil
}

// Dimension returns the fixed length of produced vectors.
func (e *FastEmbed) Dimension() int { return e.dimension }

// Close releases the loaded ONNX model.
func (e *FastEmbed) Close() error {
	if e.model != nil {
		return e.model.Destroy()
	}
	return nil
}
