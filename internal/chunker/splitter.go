package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ragtutor/internal/domain"
)

// separators is ordered from coarsest to finest boundary. A hard rune cut
// is the last resort when no boundary fits within the chunk size.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter splits document text hierarchically by paragraph, line, sentence
// and word boundaries, producing chunks of at most size runes with overlap
// runes carried between adjacent chunks.
type Splitter struct {
	size    int
	overlap int
}

// New creates a splitter. Non-positive size falls back to 1000 runes,
// negative overlap to 0. Overlap must stay below size.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap}
}

// Chunks splits text and assigns stable zero-padded IDs in extraction order.
func (s *Splitter) Chunks(text string) []domain.Chunk {
	var chunks []domain.Chunk
	for i, t := range s.Split(text) {
		chunks = append(chunks, domain.Chunk{
			ID:      fmt.Sprintf("chunk_%04d", i),
			Text:    t,
			Ordinal: i,
		})
	}
	return chunks
}

// Split returns the chunk texts for a document. Chunk boundaries prefer the
// coarsest separator that keeps pieces within the configured size; whitespace
// is trimmed and empty chunks are dropped.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, piece := range s.split(text, separators) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, remaining := pickSeparator(text, seps)

	var pieces []string
	if sep == "" {
		pieces = s.cut(text)
	} else {
		// SplitAfter keeps the separator on the preceding piece so that
		// merged chunks reproduce the source text exactly.
		for _, p := range strings.SplitAfter(text, sep) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var out []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
	}
	for _, p := range pieces {
		if utf8.RuneCountInString(p) < s.size {
			pending = append(pending, p)
			continue
		}
		flush()
		if len(remaining) == 0 {
			// No finer boundary is left; cut the piece at rune
			// positions so the size cap holds.
			out = append(out, s.cut(p)...)
		} else {
			out = append(out, s.split(p, remaining)...)
		}
	}
	flush()
	return out
}

// merge joins consecutive small pieces into chunks of at most size runes,
// retaining a tail of each emitted chunk as the overlap for the next one.
func (s *Splitter) merge(pieces []string) []string {
	var out []string
	var window []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.size && len(window) > 0 {
			out = append(out, strings.Join(window, ""))
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		out = append(out, strings.Join(window, ""))
	}
	return out
}

// cut slices text into size-rune windows advancing by size-overlap runes.
func (s *Splitter) cut(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	if step < 1 {
		step = s.size
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}
