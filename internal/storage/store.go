// Package storage persists the normalized rating table. The CSV backend
// matches the processed file the original data pipeline produces; the
// SQLite backend offers the same interface for larger stores.
package storage

import (
	"errors"
	"fmt"

	"github.com/okhotin/steamrec/internal/rating"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// RatingStore is the persisted rating table. Load reads the whole store
// into memory; Append adds records and persists the full store. A single
// process owns the store — no cross-process locking.
type RatingStore interface {
	Load() ([]rating.Record, error)
	Append(records []rating.Record) error
	Count() (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open creates the configured RatingStore in dataDir.
func Open(backend, dataDir string) (RatingStore, error) {
	switch backend {
	case BackendCSV, "":
		return OpenCSV(dataDir)
	case BackendSQLite:
		return OpenSQLite(dataDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
