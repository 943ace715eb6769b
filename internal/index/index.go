// Package index is the k-nearest-neighbour index queried by the recommender, a thin layer
// over comet's flat (exact) index that maps comet node ids to catalog rows.
//
// The index is built offline (cmd/indexer) and shipped as an artifact next to the songs
// table; see WriteTo and Read for the on-disk layout.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wizenheimer/comet"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidK is returned for k <= 0.
	ErrInvalidK = errors.New("k must be positive")
)

// Hit is one search result: a row position in the catalog and its distance to the query.
type Hit struct {
	Row      int     `json:"row"`
	Distance float32 `json:"distance"`
}

// Index is immutable after build. Search is safe for concurrent use; Add is not safe to
// call concurrently with other Adds.
type Index struct {
	flat   *comet.FlatIndex
	dim    int
	metric Metric
	count  int
}

// New returns an empty index for vectors of length dim.
func New(dim int, metric Metric) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	kind, err := metric.kind()
	if err != nil {
		return nil, err
	}
	flat, err := comet.NewFlatIndex(dim, kind)
	if err != nil {
		return nil, fmt.Errorf("flat index: %w", err)
	}
	return &Index{flat: flat, dim: dim, metric: metric}, nil
}

// Build creates an index over matrix, row i of the matrix becoming row i of the index.
func Build(matrix [][]float32, metric Metric) (*Index, error) {
	if len(matrix) == 0 {
		return nil, errors.New("cannot build an index over an empty matrix")
	}
	idx, err := New(len(matrix[0]), metric)
	if err != nil {
		return nil, err
	}
	for i, row := range matrix {
		if err := idx.Add(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return idx, nil
}

// Add appends vec as the next row. comet normalises in place for cosine, so it gets a copy.
func (x *Index) Add(vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, x.dim, len(vec))
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	if err := x.flat.Add(*comet.NewVectorNodeWithID(uint32(x.count), stored)); err != nil {
		return err
	}
	x.count++
	return nil
}

// Len is the number of indexed vectors.
func (x *Index) Len() int { return x.count }

// Dim is the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Metric is the distance the index ranks by.
func (x *Index) Metric() Metric { return x.metric }

// Search returns the k rows closest to query ordered by ascending distance, equal distances
// by row. When k exceeds Len, every row is returned.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, x.dim, len(query))
	}
	k = min(k, x.count)
	if k == 0 {
		return []Hit{}, nil
	}

	results, err := x.flat.NewSearch().WithQuery(query).WithK(k).Execute()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Row: int(r.Node.ID()), Distance: r.Score}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Row < hits[j].Row
	})
	return hits, nil
}
