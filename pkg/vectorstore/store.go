package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when vectors of different lengths are mixed.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search result: the position of the stored vector and its cosine similarity.
type Hit struct {
	Index int
	Score float64
}

// Store is an immutable in-memory set of vectors, index-aligned with whatever
// sequence they were built from. Safe for concurrent reads.
type Store struct {
	vectors [][]float32
	norms   []float64
	dims    int
}

// NewStore copies vectors into a new store. All vectors must share one dimension.
func NewStore(vectors [][]float32) (*Store, error) {
	s := &Store{
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if i == 0 {
			s.dims = len(v)
		} else if len(v) != s.dims {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), s.dims)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		s.vectors[i] = cp
		s.norms[i] = norm(cp)
	}
	return s, nil
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vectors)
}

// Dims returns the vector dimension, 0 for an empty store.
func (s *Store) Dims() int {
	if s == nil {
		return 0
	}
	return s.dims
}

// Vectors returns a copy of the stored vectors.
func (s *Store) Vectors() [][]float32 {
	out := make([][]float32, len(s.vectors))
	for i, v := range s.vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}

// Search scores every stored vector against query by cosine similarity and returns
// the best limit hits, highest first. Equal scores keep storage order.
func (s *Store) Search(query []float32, limit int) ([]Hit, error) {
	if s.Len() == 0 || limit <= 0 {
		return nil, nil
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dims, want %d", ErrDimensionMismatch, len(query), s.dims)
	}

	qn := norm(query)
	hits := make([]Hit, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = Hit{Index: i, Score: cosine(query, qn, v, s.norms[i])}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
