package rating

import (
	"errors"
	"testing"
)

func TestPlayRating_Boundaries(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{0.5, 2},
		{1, 2}, // exactly 1 is not "more than 1"
		{1.01, 3},
		{5, 3},
		{6, 4},
		{20, 4},
		{21, 5},
		{200, 5},
		{201, 6},
		{1000, 6}, // exactly 1000 is not "more than 1000"
		{1001, 7},
	}
	for _, c := range cases {
		if got := PlayRating(c.hours); got != c.want {
			t.Errorf("PlayRating(%v) = %d, want %d", c.hours, got, c.want)
		}
	}
}

func TestNormalize_PlayBeatsPurchase(t *testing.T) {
	events := []Event{
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPurchase, Value: 1},
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPlay, Value: 50},
	}

	records, err := Normalize(events)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Rating != 5 {
		t.Errorf("rating = %d, want 5 (50 hours)", records[0].Rating)
	}
}

// TestNormalize_OrderIndependent feeds the same events in two orders and
// expects identical output.
func TestNormalize_OrderIndependent(t *testing.T) {
	forward := []Event{
		{UserID: 2, GameTitle: "Portal", Behavior: BehaviorPlay, Value: 10},
		{UserID: 1, GameTitle: "Portal", Behavior: BehaviorPurchase, Value: 1},
		{UserID: 1, GameTitle: "Portal", Behavior: BehaviorPlay, Value: 3},
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPlay, Value: 300},
	}
	backward := make([]Event, len(forward))
	for i, e := range forward {
		backward[len(forward)-1-i] = e
	}

	a, err := Normalize(forward)
	if err != nil {
		t.Fatalf("Normalize(forward): %v", err)
	}
	b, err := Normalize(backward)
	if err != nil {
		t.Fatalf("Normalize(backward): %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("record %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestNormalize_OneRecordPerPair(t *testing.T) {
	events := []Event{
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPurchase, Value: 1},
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPurchase, Value: 1}, // exact dup
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPlay, Value: 2},
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPlay, Value: 8},
		{UserID: 2, GameTitle: "Dota 2", Behavior: BehaviorPurchase, Value: 1},
	}

	records, err := Normalize(events)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	seen := make(map[[2]any]bool)
	for _, r := range records {
		key := [2]any{r.UserID, r.GameTitle}
		if seen[key] {
			t.Errorf("duplicate pair (%d, %q)", r.UserID, r.GameTitle)
		}
		seen[key] = true
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// The longer of the two play sessions decides the rating.
	if records[0].Rating != 4 {
		t.Errorf("user 1 rating = %d, want 4 (8 hours)", records[0].Rating)
	}
	if records[1].Rating != PurchasedRating {
		t.Errorf("user 2 rating = %d, want %d (purchase only)", records[1].Rating, PurchasedRating)
	}
}

func TestNormalize_PurchaseOnly(t *testing.T) {
	records, err := Normalize([]Event{
		{UserID: 7, GameTitle: "Half-Life", Behavior: BehaviorPurchase, Value: 1},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(records) != 1 || records[0].Rating != PurchasedRating {
		t.Fatalf("got %+v, want single record with rating %d", records, PurchasedRating)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	records, err := Normalize(nil)
	if err != nil {
		t.Fatalf("Normalize(nil): %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty result, got %d records", len(records))
	}
}

func TestNormalize_UnknownBehavior(t *testing.T) {
	_, err := Normalize([]Event{
		{UserID: 1, GameTitle: "Dota 2", Behavior: "wishlist", Value: 1},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// TestNormalize_Idempotent re-feeds normalized output (as play events whose
// hours land in the same bucket) and expects ratings to pass through.
func TestNormalize_Idempotent(t *testing.T) {
	events := []Event{
		{UserID: 1, GameTitle: "Dota 2", Behavior: BehaviorPlay, Value: 30},
		{UserID: 2, GameTitle: "Portal", Behavior: BehaviorPlay, Value: 2},
	}
	first, err := Normalize(events)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	again, err := Normalize(events)
	if err != nil {
		t.Fatalf("Normalize (second pass): %v", err)
	}
	for i := range first {
		if first[i] != again[i] {
			t.Errorf("record %d changed between runs: %+v vs %+v", i, first[i], again[i])
		}
	}
}
