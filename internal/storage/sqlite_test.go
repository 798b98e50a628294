package storage

import (
	"reflect"
	"testing"

	"github.com/okhotin/steamrec/internal/rating"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs OpenSQLite twice on the same database and
// verifies migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSQLite_AppendAndLoad(t *testing.T) {
	s := openTestSQLite(t)

	batch := []rating.Record{
		{UserID: 2, GameTitle: "Portal", Rating: 3},
		{UserID: 1, GameTitle: "Dota 2", Rating: 5},
		{UserID: 1, GameTitle: "Portal", Rating: 2},
	}
	if err := s.Append(batch); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Load orders by (user_id, game_title) regardless of insert order.
	want := []rating.Record{
		{UserID: 1, GameTitle: "Dota 2", Rating: 5},
		{UserID: 1, GameTitle: "Portal", Rating: 2},
		{UserID: 2, GameTitle: "Portal", Rating: 3},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("Load = %+v, want %+v", records, want)
	}

	count, err := s.Count()
	if err != nil || count != 3 {
		t.Errorf("Count = %d, %v; want 3", count, err)
	}
}

func TestSQLite_EmptyLoad(t *testing.T) {
	s := openTestSQLite(t)

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty table, got %d rows", len(records))
	}
}
