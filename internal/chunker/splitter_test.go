package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHardCutWithOverlap(t *testing.T) {
	// 2500 runes with no paragraph, line, sentence or word boundary forces
	// the hard rune cut.
	text := strings.Repeat("a", 800) + strings.Repeat("b", 800) + strings.Repeat("c", 900)
	s := New(1000, 200)

	chunks := s.Split(text)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
	// Chunk 2 begins inside chunk 1: the last 200 runes of chunk 1 are the
	// first 200 runes of chunk 2.
	assert.Equal(t, chunks[0][800:1000], chunks[1][:200])
	assert.Equal(t, chunks[1][800:1000], chunks[2][:200])
}

func TestSplitCutsOversizedTokens(t *testing.T) {
	// A single token longer than the chunk size sits between ordinary
	// words, so the word separator matches but cannot break the token.
	text := "intro words here " + strings.Repeat("a", 1500) + " closing words"
	s := New(1000, 200)

	chunks := s.Split(text)
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
	assert.Equal(t, "intro words here", chunks[0])
	assert.Equal(t, strings.Repeat("a", 1000), chunks[1])
	assert.Equal(t, strings.Repeat("a", 700), chunks[2])
	assert.Equal(t, "closing words", chunks[3])
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph about forces.\n\nSecond paragraph about motion.\n\nThird paragraph about energy."
	s := New(40, 0)

	chunks := s.Split(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph about forces.", chunks[0])
	assert.Equal(t, "Second paragraph about motion.", chunks[1])
	assert.Equal(t, "Third paragraph about energy.", chunks[2])
}

func TestSplitCarriesOverlapBetweenMergedChunks(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	s := New(100, 20)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		// Each chunk starts with text already present at the end of its
		// predecessor.
		head := chunks[i][:10]
		assert.Contains(t, prev, head)
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
}

func TestSplitSentenceBoundaries(t *testing.T) {
	text := "Velocity is speed with direction. Acceleration is the rate of change of velocity. Force causes acceleration."
	s := New(60, 0)

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 60)
	}
	assert.True(t, strings.HasPrefix(chunks[0], "Velocity is speed with direction."))
}

func TestSplitEmptyInput(t *testing.T) {
	s := New(1000, 200)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestChunksAssignsStableIDs(t *testing.T) {
	s := New(30, 0)
	chunks := s.Chunks("Alpha paragraph.\n\nBeta paragraph.\n\nGamma paragraph.")
	require.Len(t, chunks, 3)
	assert.Equal(t, "chunk_0000", chunks[0].ID)
	assert.Equal(t, "chunk_0001", chunks[1].ID)
	assert.Equal(t, "chunk_0002", chunks[2].ID)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}
