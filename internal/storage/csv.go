package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okhotin/steamrec/internal/rating"
)

const (
	ratingsFile = "ratings.csv"
	eventsFile  = "events.csv"
)

// CSVStore keeps the rating table in a single CSV file, read fully into
// memory on open and rewritten in full on every Append.
type CSVStore struct {
	path    string
	records []rating.Record
}

// OpenCSV opens the rating table in dataDir. When ratings.csv is absent
// but a raw events.csv exists, the rating table is synthesized from it
// once and persisted before first use. With neither file present the
// store starts empty.
func OpenCSV(dataDir string) (*CSVStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &CSVStore{path: filepath.Join(dataDir, ratingsFile)}

	if _, err := os.Stat(s.path); err == nil {
		records, err := readRatingsCSV(s.path)
		if err != nil {
			return nil, err
		}
		s.records = records
		return s, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking %s: %w", s.path, err)
	}

	eventsPath := filepath.Join(dataDir, eventsFile)
	if _, err := os.Stat(eventsPath); err == nil {
		events, err := ReadEventsCSV(eventsPath)
		if err != nil {
			return nil, err
		}
		records, err := rating.Normalize(events)
		if err != nil {
			return nil, fmt.Errorf("normalizing %s: %w", eventsPath, err)
		}
		s.records = records
		if err := s.persist(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load returns a copy of the in-memory rating table.
func (s *CSVStore) Load() ([]rating.Record, error) {
	out := make([]rating.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Append adds records and rewrites the whole file.
func (s *CSVStore) Append(records []rating.Record) error {
	s.records = append(s.records, records...)
	return s.persist()
}

func (s *CSVStore) Count() (int, error) {
	return len(s.records), nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) persist() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	// Leading ordinal column matches the processed file's layout.
	if err := w.Write([]string{"", "user_id", "game_title", "rating"}); err != nil {
		return err
	}
	for i, r := range s.records {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatInt(r.UserID, 10),
			r.GameTitle,
			strconv.Itoa(r.Rating),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", s.path, err)
	}
	return f.Sync()
}

func readRatingsCSV(path string) ([]rating.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []rating.Record
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("%s row %d: expected 4 columns, got %d", path, i+1, len(row))
		}
		userID, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: user_id: %w", path, i+1, err)
		}
		score, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: rating: %w", path, i+1, err)
		}
		records = append(records, rating.Record{UserID: userID, GameTitle: row[2], Rating: score})
	}
	return records, nil
}

// ReadEventsCSV parses a raw event log: headerless rows of
// user_id,game_title,behavior,value plus an unused trailing column.
func ReadEventsCSV(path string) ([]rating.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	events := make([]rating.Event, 0, len(rows))
	for i, row := range rows {
		userID, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: user_id: %w", path, i+1, err)
		}
		behavior, err := rating.ParseBehavior(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		value, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: value: %w", path, i+1, err)
		}
		events = append(events, rating.Event{
			UserID:    userID,
			GameTitle: row[1],
			Behavior:  behavior,
			Value:     value,
		})
	}
	return events, nil
}
