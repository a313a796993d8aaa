// Package vectorstore implements exact nearest-neighbor search over a flat
// vector array with paired slot-ordered metadata.
package vectorstore

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDimensionMismatch indicates vectors of the wrong length, or a
	// vectors/metadata cardinality mismatch at build time.
	ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")

	// ErrNotInitialized indicates a search before Build or Load. It points
	// at a deployment ordering bug, not a runtime condition.
	ErrNotInitialized = errors.New("vectorstore: index not initialized")

	// ErrStore indicates corrupt or incomplete persisted artifacts.
	ErrStore = errors.New("vectorstore: corrupt store")
)

// Artifacts names the paired files one index persists to: the binary vector
// array and the slot-to-metadata mapping. The two are written together and
// always loaded together.
type Artifacts struct {
	Vectors string
	Mapping string
}

// Artifact names per collection, fixed so saved stores stay portable.
var (
	TextArtifacts  = Artifacts{Vectors: "text_vectors.index", Mapping: "chunk_mapping.json"}
	ImageArtifacts = Artifacts{Vectors: "image_vectors.index", Mapping: "image_mapping.json"}
)

// Result is one search hit. Similarity is 1/(1+Distance): monotonically
// decreasing in distance, bounded in (0,1], exactly 1 at distance 0. It is
// a ranking convenience, not a probability.
type Result[M any] struct {
	Rank       int
	Meta       M
	Distance   float64
	Similarity float64
}

// FlatIndex is an exact nearest-neighbor index over one homogeneous vector
// collection. Vectors live in a flat append-only array; slot position is
// the sole join key to the metadata slice, and the two always have equal
// cardinality. The type parameter keeps collections with different metadata
// shapes in separate indices.
//
// An index is immutable once built or loaded. Rebuilds construct a fresh
// index that the owner publishes with an atomic pointer swap, so readers
// never observe partial state and need no locks.
type FlatIndex[M any] struct {
	dim       int
	artifacts Artifacts
	vectors   []float32 // count*dim values in slot order
	meta      []M
	built     bool
}

// New creates an empty, unbuilt index for vectors of the given dimension.
func New[M any](dim int, artifacts Artifacts) (*FlatIndex[M], error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: dimension must be >= 1, got %d", ErrDimensionMismatch, dim)
	}
	return &FlatIndex[M]{dim: dim, artifacts: artifacts}, nil
}

// Build stores vectors and their metadata at matching slot positions. All
// input is validated before any state is stored; a failed build leaves the
// index unchanged. An empty build is valid and yields a searchable empty
// index.
func (ix *FlatIndex[M]) Build(vectors [][]float32, meta []M) error {
	if len(vectors) != len(meta) {
		return fmt.Errorf("%w: %d vectors for %d metadata records", ErrDimensionMismatch, len(vectors), len(meta))
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index configured for %d", ErrDimensionMismatch, i, len(v), ix.dim)
		}
	}
	flat := make([]float32, 0, len(vectors)*ix.dim)
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	ix.vectors = flat
	ix.meta = append([]M(nil), meta...)
	ix.built = true
	return nil
}

// Size returns the number of stored vectors.
func (ix *FlatIndex[M]) Size() int {
	if ix == nil {
		return 0
	}
	return len(ix.meta)
}

// Dimension returns the configured vector dimension.
func (ix *FlatIndex[M]) Dimension() int { return ix.dim }

// Metadata returns the stored metadata records in slot order.
func (ix *FlatIndex[M]) Metadata() []M {
	return append([]M(nil), ix.meta...)
}

// Search computes the squared Euclidean distance from query to every stored
// vector and returns the min(k, size) nearest, sorted ascending by distance
// with ties broken by ascending slot position.
func (ix *FlatIndex[M]) Search(query []float32, k int) ([]Result[M], error) {
	if !ix.built {
		return nil, ErrNotInitialized
	}
	if k < 1 {
		return nil, fmt.Errorf("vectorstore: k must be >= 1, got %d", k)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index configured for %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	n := len(ix.meta)
	slots := make([]int, n)
	distances := make([]float64, n)
	for slot := 0; slot < n; slot++ {
		slots[slot] = slot
		distances[slot] = squaredL2(query, ix.vectors[slot*ix.dim:(slot+1)*ix.dim])
	}
	sort.SliceStable(slots, func(a, b int) bool {
		return distances[slots[a]] < distances[slots[b]]
	})

	if k > n {
		k = n
	}
	results := make([]Result[M], 0, k)
	for rank, slot := range slots[:k] {
		d := distances[slot]
		results = append(results, Result[M]{
			Rank:       rank + 1,
			Meta:       ix.meta[slot],
			Distance:   d,
			Similarity: 1 / (1 + d),
		})
	}
	return results, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
