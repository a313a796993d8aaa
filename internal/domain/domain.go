package domain

import "strings"

// Chunk is a bounded span of extracted document text with a stable ID.
// Chunks are created once at ingestion and never mutated.
type Chunk struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Ordinal int    `json:"ordinal"`
}

// ImageDescriptor holds the metadata of an illustrative image. The image
// itself is never embedded; a rich-text composite of its metadata is.
type ImageDescriptor struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Topics      []string `json:"topics"`
}

// EmbeddingText builds the composite text that stands in for the image in
// vector space. Field order is fixed so re-ingesting the same metadata
// reproduces the same embedding.
func (d ImageDescriptor) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(d.Title)
	b.WriteString(". ")
	b.WriteString(d.Description)
	b.WriteString(" Keywords: ")
	b.WriteString(strings.Join(d.Keywords, ", "))
	b.WriteString(". Topics: ")
	b.WriteString(strings.Join(d.Topics, ", "))
	b.WriteString(".")
	return b.String()
}

// SupportingChunk is a truncated preview of a retrieved chunk attached to
// an Answer together with its similarity score.
type SupportingChunk struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Answer is the result of one grounded question round trip. It is built
// per request and never persisted.
type Answer struct {
	Question         string            `json:"question"`
	Answer           string            `json:"answer"`
	SupportingChunks []SupportingChunk `json:"context_chunks"`
	Image            *ImageDescriptor  `json:"image,omitempty"`
}

// IngestStats reports what one ingestion run produced.
type IngestStats struct {
	Chunks int `json:"chunks_created"`
	Images int `json:"images_indexed"`
}
