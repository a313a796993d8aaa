package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddings serves an OpenAI-compatible /embeddings endpoint that
// derives each vector from the text length, so outputs are deterministic
// and order is observable.
func fakeEmbeddings(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string  `json:"object"`
			Data   []datum `json:"data"`
			Model  string  `json:"model"`
		}{Object: "list", Model: req.Model}
		for i, text := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(text))
			resp.Data = append(resp.Data, datum{Object: "embedding", Embedding: vec, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestOpenAI(t *testing.T, baseURL string, dim, batchSize int) *OpenAI {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "test-key")
	e, err := NewOpenAI(OpenAIConfig{
		BaseURL:   baseURL,
		APIKeyEnv: "TEST_EMBED_KEY",
		Model:     "text-embedding-3-small",
		Dimension: dim,
		Timeout:   5 * time.Second,
		BatchSize: batchSize,
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedDocumentsKeepsOrderAcrossBatches(t *testing.T) {
	srv := fakeEmbeddings(t, 4)
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL, 4, 2)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
		assert.Len(t, vectors[i], 4)
	}
}

func TestOpenAIEmbedQuery(t *testing.T) {
	srv := fakeEmbeddings(t, 4)
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL, 4, 32)
	vec, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.Equal(t, float32(5), vec[0])
}

func TestOpenAIRejectsDimensionMismatch(t *testing.T) {
	srv := fakeEmbeddings(t, 4)
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL, 8, 32)
	_, err := e.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAIEmptyInput(t *testing.T) {
	srv := fakeEmbeddings(t, 4)
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL, 4, 32)

	_, err := e.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIServerFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL, 4, 32)
	_, err := e.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestNewOpenAIRequiresKeyAndDimension(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewOpenAI(OpenAIConfig{APIKeyEnv: "TEST_EMBED_KEY", Dimension: 4})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("TEST_EMBED_KEY", "k")
	_, err = NewOpenAI(OpenAIConfig{APIKeyEnv: "TEST_EMBED_KEY", Dimension: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
