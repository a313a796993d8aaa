package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/chunker"
	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
	"ragtutor/internal/llm"
	"ragtutor/internal/vectorstore"
)

// fakeEmbedder maps text to vectors with a deterministic function, so tests
// control retrieval order without a model.
type fakeEmbedder struct {
	dim int
	fn  func(text string) []float32
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(texts) == 0 {
		return nil, embedding.ErrEmptyInput
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = f.fn(t)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fn(text), nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Close() error   { return nil }

// keywordEmbedder places texts mentioning a keyword at a fixed point in
// vector space.
func keywordEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		dim: 2,
		fn: func(text string) []float32 {
			switch {
			case strings.Contains(text, "inertia"):
				return []float32{1, 0}
			case strings.Contains(text, "energy"):
				return []float32{5, 5}
			default:
				return []float32{9, 9}
			}
		},
	}
}

type fakeCompleter struct {
	reply     string
	err       error
	gotSystem string
	gotUser   string
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(t *testing.T, emb embedding.Embedder, completer llm.Completer) *Service {
	t.Helper()
	svc, err := New(emb, completer, chunker.New(1000, 200), Config{
		Dimension:  2,
		TopKChunks: 3,
		TopKImages: 1,
		StoreDir:   t.TempDir(),
	}, nil)
	require.NoError(t, err)
	return svc
}

// twoChunkDocument yields exactly two chunks: one about inertia (608 runes)
// and one about energy.
func twoChunkDocument() string {
	return "inertia " + strings.Repeat("x", 600) + "\n\n" + "energy " + strings.Repeat("y", 500)
}

func TestAnswerQuestionGroundedSuccess(t *testing.T) {
	completer := &fakeCompleter{reply: "Inertia is covered in context 1."}
	svc := newTestService(t, keywordEmbedder(), completer)

	n, err := svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	answer, err := svc.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err)

	assert.Equal(t, "what is inertia?", answer.Question)
	assert.Equal(t, "Inertia is covered in context 1.", answer.Answer)
	require.Len(t, answer.SupportingChunks, 2)

	top := answer.SupportingChunks[0]
	assert.Equal(t, "chunk_0000", top.ID)
	assert.Equal(t, 1.0, top.Similarity)
	assert.True(t, strings.HasSuffix(top.Text, "..."))
	assert.Equal(t, previewRunes+3, utf8.RuneCountInString(top.Text))

	assert.Less(t, answer.SupportingChunks[1].Similarity, top.Similarity)
}

func TestAnswerQuestionPromptAssembly(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc := newTestService(t, keywordEmbedder(), completer)

	_, err := svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)

	_, err = svc.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err)

	assert.Contains(t, completer.gotSystem, "ONLY use information from the provided context")
	assert.Contains(t, completer.gotUser, "Context 1:\ninertia ")
	assert.Contains(t, completer.gotUser, "Context 2:\nenergy ")
	assert.Contains(t, completer.gotUser, "Student's Question: what is inertia?")
}

func TestAnswerQuestionFallbackOnModelFailure(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("%w: connection refused", llm.ErrUnavailable)}
	svc := newTestService(t, keywordEmbedder(), completer)

	_, err := svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)

	answer, err := svc.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err, "model failure must not cross the orchestrator boundary")

	assert.True(t, strings.HasPrefix(answer.Answer, fallbackPrefix))
	// The fallback quotes the first 500 runes of the top-ranked chunk.
	excerpt := "inertia " + strings.Repeat("x", excerptRunes-8)
	assert.Contains(t, answer.Answer, excerpt)
	assert.Contains(t, answer.Answer, "This should help answer your question about: what is inertia?")
	assert.Equal(t, 1, completer.calls, "fallback must not retry the model")
	require.Len(t, answer.SupportingChunks, 2)
}

func TestAnswerQuestionEmptyCorpus(t *testing.T) {
	completer := &fakeCompleter{err: llm.ErrUnavailable}
	svc := newTestService(t, keywordEmbedder(), completer)

	n, err := svc.IngestDocument(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	answer, err := svc.AnswerQuestion(context.Background(), "anything at all?")
	require.NoError(t, err)
	assert.Empty(t, answer.SupportingChunks)
	assert.True(t, strings.HasPrefix(answer.Answer, fallbackPrefix))
	assert.NotContains(t, answer.Answer, "based on the relevant section")
}

func TestAnswerQuestionBeforeIngest(t *testing.T) {
	svc := newTestService(t, keywordEmbedder(), &fakeCompleter{reply: "ok"})

	_, err := svc.AnswerQuestion(context.Background(), "anything?")
	assert.ErrorIs(t, err, vectorstore.ErrNotInitialized)
}

func TestAnswerQuestionEmbedderErrorPropagates(t *testing.T) {
	emb := keywordEmbedder()
	emb.err = fmt.Errorf("%w: model exploded", embedding.ErrGeneration)
	svc := newTestService(t, emb, &fakeCompleter{reply: "ok"})

	_, err := svc.AnswerQuestion(context.Background(), "anything?")
	assert.ErrorIs(t, err, embedding.ErrGeneration)
}

func TestIngestImagesAndRetrieveTopImage(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc := newTestService(t, keywordEmbedder(), completer)

	_, err := svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)

	descriptors := []domain.ImageDescriptor{
		{ID: "img_001", Filename: "inertia.png", Title: "inertia diagram", Keywords: []string{"inertia"}, Topics: []string{"mechanics"}},
		{ID: "img_002", Filename: "energy.png", Title: "energy diagram", Keywords: []string{"energy"}, Topics: []string{"mechanics"}},
	}
	n, err := svc.IngestImages(context.Background(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	answer, err := svc.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err)
	require.NotNil(t, answer.Image)
	assert.Equal(t, "img_001", answer.Image.ID)

	assert.Len(t, svc.Images(), 2)
}

func TestAnswerWithoutImageIndex(t *testing.T) {
	svc := newTestService(t, keywordEmbedder(), &fakeCompleter{reply: "ok"})

	_, err := svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)

	answer, err := svc.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err)
	assert.Nil(t, answer.Image)
}

func TestIngestPersistsAndReloads(t *testing.T) {
	emb := keywordEmbedder()
	completer := &fakeCompleter{reply: "ok"}
	dir := t.TempDir()

	svc, err := New(emb, completer, chunker.New(1000, 200), Config{Dimension: 2, TopKChunks: 3, TopKImages: 1, StoreDir: dir}, nil)
	require.NoError(t, err)
	_, err = svc.IngestDocument(context.Background(), twoChunkDocument())
	require.NoError(t, err)

	// A fresh process restores the same collection from disk.
	restored, err := New(emb, completer, chunker.New(1000, 200), Config{Dimension: 2, TopKChunks: 3, TopKImages: 1, StoreDir: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, restored.LoadIndices())

	st := restored.Status()
	assert.True(t, st.TextLoaded)
	assert.Equal(t, 2, st.TextVectors)
	assert.False(t, st.ImageLoaded)

	answer, err := restored.AnswerQuestion(context.Background(), "what is inertia?")
	require.NoError(t, err)
	require.NotEmpty(t, answer.SupportingChunks)
	assert.Equal(t, "chunk_0000", answer.SupportingChunks[0].ID)
}

func TestLoadIndicesMissingArtifactsIsNotAnError(t *testing.T) {
	svc := newTestService(t, keywordEmbedder(), &fakeCompleter{reply: "ok"})
	require.NoError(t, svc.LoadIndices())

	st := svc.Status()
	assert.False(t, st.TextLoaded)
	assert.False(t, st.ImageLoaded)
}

func TestNewRejectsDimensionMismatch(t *testing.T) {
	emb := keywordEmbedder() // dim 2
	_, err := New(emb, &fakeCompleter{}, chunker.New(1000, 200), Config{Dimension: 384}, nil)
	assert.ErrorIs(t, err, embedding.ErrInvalidConfig)
}

func TestFallbackAnswerIsPure(t *testing.T) {
	results := []vectorstore.Result[domain.Chunk]{
		{Rank: 1, Meta: domain.Chunk{ID: "chunk_0000", Text: "Short context."}, Distance: 0, Similarity: 1},
	}
	a := FallbackAnswer("why?", results)
	b := FallbackAnswer("why?", results)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, fallbackPrefix))
	assert.Contains(t, a, "Short context.")
}
