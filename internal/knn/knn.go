// Package knn is a brute-force cosine-distance nearest-neighbor search
// over interaction matrix rows. Exact search is intentional: the corpus
// is small and approximate indexes would destabilize result ordering.
package knn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okhotin/steamrec/internal/matrix"
)

// ErrKeyNotFound is returned when the query key has no row in the matrix.
var ErrKeyNotFound = errors.New("key not found in index")

// DefaultK is the number of neighbors returned when the caller does not
// ask for a specific count.
const DefaultK = 10

// Neighbor is one ranked result: a row key and its cosine distance
// (0 = identical direction, 2 = opposite) from the query row.
type Neighbor struct {
	Key      string  `json:"key"`
	Distance float64 `json:"distance"`
}

// Nearest returns the k rows of m closest to rowKey by cosine distance,
// ascending, with ties broken by ascending row index. The query row
// itself is excluded. k <= 0 falls back to DefaultK.
func Nearest(m *matrix.Matrix, rowKey string, k int) ([]Neighbor, error) {
	if k <= 0 {
		k = DefaultK
	}

	queryIdx, ok := m.RowIndex(rowKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, rowKey)
	}
	query := m.Rows[queryIdx]
	queryNorm := norm(query)

	neighbors := make([]Neighbor, 0, len(m.Rows)-1)
	for i, row := range m.Rows {
		if i == queryIdx {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Key:      m.RowKeys[i],
			Distance: 1 - cosine(query, queryNorm, row),
		})
	}

	// Rows were scanned in index order; a stable sort keeps that order
	// for equal distances.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func norm(v matrix.Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosine computes the cosine similarity between the query row and
// another sparse row. Zero-norm rows have no direction; similarity is 0.
func cosine(query matrix.Vector, queryNorm float64, row matrix.Vector) float64 {
	if queryNorm == 0 {
		return 0
	}
	var dot float64
	for col, x := range query {
		if y, ok := row[col]; ok {
			dot += x * y
		}
	}
	rowNorm := norm(row)
	if rowNorm == 0 {
		return 0
	}
	return dot / (queryNorm * rowNorm)
}
