// Package matrix pivots a rating table into a sparse user×item (or
// item×user) interaction matrix with stable row and column key indexes.
package matrix

import (
	"errors"
	"sort"
	"strconv"

	"github.com/okhotin/steamrec/internal/rating"
)

// ErrEmptyDataset is returned when there are no records to pivot.
var ErrEmptyDataset = errors.New("no rating records to build a matrix from")

// Orientation selects which dimension becomes the matrix rows.
type Orientation int

const (
	// ItemRows puts game titles on rows and user IDs on columns.
	// Used for "similar games" queries.
	ItemRows Orientation = iota
	// UserRows puts user IDs on rows and game titles on columns.
	// Used for "similar users" queries.
	UserRows
)

// Vector is a sparse row: column index -> rating. Absent columns are 0,
// meaning "no observed interaction", not a low rating.
type Vector map[int]float64

// Matrix is a sparse interaction matrix derived from a rating table.
// It is ephemeral: rebuilt per query, never persisted.
type Matrix struct {
	RowKeys []string
	ColKeys []string
	Rows    []Vector

	rowIndex map[string]int
}

// UserKey is the row/column key under which a user ID appears.
func UserKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Build pivots records into a Matrix with the given orientation.
// Row and column keys are sorted ascending (user IDs numerically, titles
// lexicographically), so building twice from the same record set yields
// identical index mappings and content.
func Build(records []rating.Record, orient Orientation) (*Matrix, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	userKeys, titleKeys := sortedKeys(records)

	var rowKeys, colKeys []string
	if orient == ItemRows {
		rowKeys, colKeys = titleKeys, userKeys
	} else {
		rowKeys, colKeys = userKeys, titleKeys
	}

	rowIndex := indexOf(rowKeys)
	colIndex := indexOf(colKeys)

	rows := make([]Vector, len(rowKeys))
	for i := range rows {
		rows[i] = make(Vector)
	}
	for _, rec := range records {
		var r, c int
		if orient == ItemRows {
			r, c = rowIndex[rec.GameTitle], colIndex[UserKey(rec.UserID)]
		} else {
			r, c = rowIndex[UserKey(rec.UserID)], colIndex[rec.GameTitle]
		}
		rows[r][c] = float64(rec.Rating)
	}

	return &Matrix{
		RowKeys:  rowKeys,
		ColKeys:  colKeys,
		Rows:     rows,
		rowIndex: rowIndex,
	}, nil
}

// RowIndex returns the row position of key, if present.
func (m *Matrix) RowIndex(key string) (int, bool) {
	i, ok := m.rowIndex[key]
	return i, ok
}

// At returns the cell value at (row, col), 0 for absent interactions.
func (m *Matrix) At(row, col int) float64 {
	return m.Rows[row][col]
}

func sortedKeys(records []rating.Record) (userKeys, titleKeys []string) {
	userSet := make(map[int64]struct{})
	titleSet := make(map[string]struct{})
	for _, rec := range records {
		userSet[rec.UserID] = struct{}{}
		titleSet[rec.GameTitle] = struct{}{}
	}

	userIDs := make([]int64, 0, len(userSet))
	for id := range userSet {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	userKeys = make([]string, len(userIDs))
	for i, id := range userIDs {
		userKeys[i] = UserKey(id)
	}

	titleKeys = make([]string, 0, len(titleSet))
	for title := range titleSet {
		titleKeys = append(titleKeys, title)
	}
	sort.Strings(titleKeys)
	return userKeys, titleKeys
}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}
