// Package service orchestrates ingestion and grounded question answering.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ragtutor/internal/chunker"
	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
	"ragtutor/internal/llm"
	"ragtutor/internal/vectorstore"
)

// Config holds the retrieval parameters of the orchestrator.
type Config struct {
	// Dimension is the embedding dimension; it must match the embedder.
	Dimension int
	// TopKChunks is how many text chunks a query retrieves.
	TopKChunks int
	// TopKImages is how many images a query retrieves.
	TopKImages int
	// StoreDir is where index artifacts are persisted.
	StoreDir string
}

// Status reports what the service currently has loaded, for health checks.
type Status struct {
	TextLoaded   bool `json:"text_index_loaded"`
	TextVectors  int  `json:"text_vectors"`
	ImageLoaded  bool `json:"image_index_loaded"`
	ImageVectors int  `json:"image_vectors"`
}

// Service owns the embedder, both indices and the model client. It is
// stateless across requests; the only mutable state is the pair of index
// pointers, republished atomically on rebuild so concurrent readers never
// observe a partial index.
type Service struct {
	embedder  embedding.Embedder
	completer llm.Completer
	splitter  *chunker.Splitter
	cfg       Config
	logger    *zap.Logger

	textIndex  atomic.Pointer[vectorstore.FlatIndex[domain.Chunk]]
	imageIndex atomic.Pointer[vectorstore.FlatIndex[domain.ImageDescriptor]]
}

// New wires the orchestrator from its injected dependencies.
func New(embedder embedding.Embedder, completer llm.Completer, splitter *chunker.Splitter, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("%w: dimension must be >= 1, got %d", embedding.ErrInvalidConfig, cfg.Dimension)
	}
	if d := embedder.Dimension(); d != 0 && d != cfg.Dimension {
		return nil, fmt.Errorf("%w: embedder produces %d-dimensional vectors, service configured for %d", embedding.ErrInvalidConfig, d, cfg.Dimension)
	}
	if cfg.TopKChunks < 1 {
		cfg.TopKChunks = 3
	}
	if cfg.TopKImages < 1 {
		cfg.TopKImages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		completer: completer,
		splitter:  splitter,
		cfg:       cfg,
		logger:    logger.Named("service"),
	}, nil
}

// LoadIndices restores previously saved indices from the store directory.
// A missing collection is not an error: the text index stays unpublished
// (questions fail until an ingest) and a missing image index just means
// answers carry no image. Corrupt artifacts are an error.
func (s *Service) LoadIndices() error {
	dir := s.cfg.StoreDir

	if artifactsPresent(dir, vectorstore.TextArtifacts) {
		ix, err := vectorstore.Load[domain.Chunk](s.cfg.Dimension, vectorstore.TextArtifacts, dir)
		if err != nil {
			return fmt.Errorf("loading text index: %w", err)
		}
		s.textIndex.Store(ix)
		indexedVectors.WithLabelValues("text").Set(float64(ix.Size()))
		s.logger.Info("text index loaded", zap.Int("vectors", ix.Size()), zap.String("dir", dir))
	} else {
		s.logger.Warn("no text index artifacts found, questions will fail until a document is ingested", zap.String("dir", dir))
	}

	if artifactsPresent(dir, vectorstore.ImageArtifacts) {
		ix, err := vectorstore.Load[domain.ImageDescriptor](s.cfg.Dimension, vectorstore.ImageArtifacts, dir)
		if err != nil {
			return fmt.Errorf("loading image index: %w", err)
		}
		s.imageIndex.Store(ix)
		indexedVectors.WithLabelValues("image").Set(float64(ix.Size()))
		s.logger.Info("image index loaded", zap.Int("vectors", ix.Size()), zap.String("dir", dir))
	} else {
		s.logger.Warn("no image index artifacts found, answers will carry no image", zap.String("dir", dir))
	}
	return nil
}

// IngestDocument chunks the extracted document text, embeds the chunks in
// batch, builds a fresh text index, persists it and publishes it. The new
// index replaces any previous one.
func (s *Service) IngestDocument(ctx context.Context, text string) (int, error) {
	chunks := s.splitter.Chunks(text)

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		var err error
		vectors, err = s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
		}
	}

	ix, err := vectorstore.New[domain.Chunk](s.cfg.Dimension, vectorstore.TextArtifacts)
	if err != nil {
		return 0, err
	}
	if err := ix.Build(vectors, chunks); err != nil {
		return 0, err
	}
	if err := ix.Save(s.cfg.StoreDir); err != nil {
		return 0, err
	}
	s.textIndex.Store(ix)
	indexedVectors.WithLabelValues("text").Set(float64(ix.Size()))
	s.logger.Info("text index rebuilt", zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IngestImages embeds each descriptor's metadata composite, builds a fresh
// image index, persists it and publishes it.
func (s *Service) IngestImages(ctx context.Context, descriptors []domain.ImageDescriptor) (int, error) {
	var vectors [][]float32
	if len(descriptors) > 0 {
		texts := make([]string, len(descriptors))
		for i, d := range descriptors {
			texts[i] = d.EmbeddingText()
		}
		var err error
		vectors, err = s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding %d image descriptors: %w", len(descriptors), err)
		}
	}

	ix, err := vectorstore.New[domain.ImageDescriptor](s.cfg.Dimension, vectorstore.ImageArtifacts)
	if err != nil {
		return 0, err
	}
	if err := ix.Build(vectors, descriptors); err != nil {
		return 0, err
	}
	if err := ix.Save(s.cfg.StoreDir); err != nil {
		return 0, err
	}
	s.imageIndex.Store(ix)
	indexedVectors.WithLabelValues("image").Set(float64(ix.Size()))
	s.logger.Info("image index rebuilt", zap.Int("images", len(descriptors)))
	return len(descriptors), nil
}

// AnswerQuestion runs the full retrieval round trip: embed the question,
// search both indices, ask the model with the retrieved context, and fall
// back to a context excerpt if the model is unreachable.
//
// Embedding and index errors propagate: they are configuration or
// deployment bugs. Model failures never do.
func (s *Service) AnswerQuestion(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()

	queryVec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embedding question: %w", err)
	}

	textIx := s.textIndex.Load()
	if textIx == nil {
		return domain.Answer{}, vectorstore.ErrNotInitialized
	}
	results, err := textIx.Search(queryVec, s.cfg.TopKChunks)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("searching text index: %w", err)
	}

	image := s.topImage(queryVec)

	answerText, modelErr := s.completer.Complete(ctx, systemPrompt, userPrompt(question, results))
	outcome := "answered"
	if modelErr != nil {
		s.logger.Warn("language model unavailable, serving fallback answer", zap.Error(modelErr))
		answerText = FallbackAnswer(question, results)
		outcome = "fallback"
		modelRequests.WithLabelValues("error").Inc()
	} else {
		modelRequests.WithLabelValues("success").Inc()
	}

	supporting := make([]domain.SupportingChunk, 0, len(results))
	for _, r := range results {
		supporting = append(supporting, domain.SupportingChunk{
			ID:         r.Meta.ID,
			Text:       truncateRunes(r.Meta.Text, previewRunes) + "...",
			Similarity: r.Similarity,
		})
	}

	questionsTotal.WithLabelValues(outcome).Inc()
	questionDuration.Observe(time.Since(start).Seconds())

	return domain.Answer{
		Question:         question,
		Answer:           answerText,
		SupportingChunks: supporting,
		Image:            image,
	}, nil
}

// topImage returns the single best image match, or nil when no image index
// is published or the search fails. Image retrieval is best effort and
// never fails a question.
func (s *Service) topImage(queryVec []float32) *domain.ImageDescriptor {
	ix := s.imageIndex.Load()
	if ix == nil || ix.Size() == 0 {
		return nil
	}
	results, err := ix.Search(queryVec, s.cfg.TopKImages)
	if err != nil {
		s.logger.Warn("image search failed", zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	meta := results[0].Meta
	return &meta
}

// Images returns the descriptors currently held by the image index.
func (s *Service) Images() []domain.ImageDescriptor {
	ix := s.imageIndex.Load()
	if ix == nil {
		return nil
	}
	return ix.Metadata()
}

// Status reports index state for health checks.
func (s *Service) Status() Status {
	var st Status
	if ix := s.textIndex.Load(); ix != nil {
		st.TextLoaded = true
		st.TextVectors = ix.Size()
	}
	if ix := s.imageIndex.Load(); ix != nil {
		st.ImageLoaded = true
		st.ImageVectors = ix.Size()
	}
	return st
}

// Close releases the embedder's resources.
func (s *Service) Close() error {
	return s.embedder.Close()
}

func artifactsPresent(dir string, a vectorstore.Artifacts) bool {
	if _, err := os.Stat(filepath.Join(dir, a.Vectors)); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, a.Mapping))
	return err == nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
