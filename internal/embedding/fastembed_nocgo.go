//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when the binary was built without
// CGO; the local ONNX runtime needs it. Use the openai provider instead.
var ErrFastEmbedNotAvailable = errors.New("embedding: fastembed not available (built without CGO)")

// FastEmbedConfig holds configuration for the local ONNX provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	Dimension int
}

// FastEmbed is a stub for non-CGO builds.
type FastEmbed struct{}

// NewFastEmbed returns an error when CGO is not available.
func NewFastEmbed(_ FastEmbedConfig) (*FastEmbed, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbed) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbed) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbed) Dimension() int { return 0 }

func (e *FastEmbed) Close() error { return nil }
