package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// ErrNotReady is returned when a lookup happens before the index is loaded
var ErrNotReady = errors.New("embedding index not loaded")

// Bundle is the on-disk format produced by cmd/precompute: one vector per
// catalog row, in row order.
type Bundle struct {
	Dim        int         `json:"dim"`
	SourceHash string      `json:"source_hash"`
	Vectors    [][]float32 `json:"vectors"`
}

// Neighbor is one nearest-neighbor hit. ID is the catalog row index.
type Neighbor struct {
	ID    int
	Score float64
}

// Index is an exact cosine-similarity nearest-neighbor index over the
// precomputed catalog vectors. Vectors are normalized at load time so a
// lookup is a dot product per row. Immutable once loaded.
type Index struct {
	mu         sync.RWMutex
	vectors    [][]float32
	dim        int
	sourceHash string
}

func NewIndex() *Index {
	return &Index{}
}

// LoadBundle reads a precomputed bundle from disk and builds the index
func (ix *Index) LoadBundle(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read embedding bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("failed to parse embedding bundle: %w", err)
	}

	if err := ix.Build(bundle.Vectors); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.sourceHash = bundle.SourceHash
	ix.mu.Unlock()
	return nil
}

// Build installs vectors into the index, normalizing each to unit length
func (ix *Index) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("cannot build index from zero vectors")
	}

	dim := len(vectors[0])
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
		normalized[i] = normalize(v)
	}

	ix.mu.Lock()
	ix.vectors = normalized
	ix.dim = dim
	ix.mu.Unlock()

	return nil
}

// Ready reports whether the index has been loaded
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors) > 0
}

// SourceHash returns the catalog checksum stamped into the loaded bundle,
// empty when the index was built directly from vectors.
func (ix *Index) SourceHash() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.sourceHash
}

// Len returns the number of indexed vectors
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Search returns the k nearest vectors to query by cosine similarity,
// highest score first.
func (ix *Index) Search(query []float32, k int) ([]Neighbor, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 {
		return nil, ErrNotReady
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalize(query)

	neighbors := make([]Neighbor, len(ix.vectors))
	for i, v := range ix.vectors {
		neighbors[i] = Neighbor{ID: i, Score: dot(q, v)}
	}

	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Score != neighbors[b].Score {
			return neighbors[a].Score > neighbors[b].Score
		}
		return neighbors[a].ID < neighbors[b].ID
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// SaveBundle writes a bundle to disk
func SaveBundle(path string, bundle Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write embedding bundle: %w", err)
	}
	return nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
