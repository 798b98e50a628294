// Package rating converts raw implicit-feedback events into a normalized
// rating table: exactly one integer rating per (user, game) pair.
package rating

import (
	"errors"
	"fmt"
	"sort"
)

// ErrValidation is returned when an event cannot be interpreted,
// e.g. an unknown behavior label.
var ErrValidation = errors.New("invalid event")

// Behavior is the kind of implicit feedback an event carries.
type Behavior string

const (
	// BehaviorPlay sorts before BehaviorPurchase, which the merge in
	// Normalize relies on: play rows must win within a (user, game) pair.
	BehaviorPlay     Behavior = "play"
	BehaviorPurchase Behavior = "purchase"
)

// ParseBehavior maps a raw behavior label to a Behavior.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(s) {
	case BehaviorPlay:
		return BehaviorPlay, nil
	case BehaviorPurchase:
		return BehaviorPurchase, nil
	default:
		return "", fmt.Errorf("%w: unknown behavior %q", ErrValidation, s)
	}
}

// Event is a single raw feedback row. Value is hours played for play
// events and 1 for purchases (input convention; the value of a purchase
// event is ignored).
type Event struct {
	UserID    int64
	GameTitle string
	Behavior  Behavior
	Value     float64
}

// Record is a normalized rating for one (user, game) pair.
// Rating is PurchasedRating for purchase-only pairs, or 2..7 from the
// play-time scale otherwise.
type Record struct {
	UserID    int64
	GameTitle string
	Rating    int
}

// PurchasedRating is the rating assigned to a game that was purchased
// but never played. It sits below the play scale on purpose.
const PurchasedRating = 1

// PlayRating maps hours played onto the 2..7 rating scale.
// Boundaries are strict: exactly 1 hour is still a 2, exactly 1000 a 6.
func PlayRating(hours float64) int {
	switch {
	case hours > 1000:
		return 7
	case hours > 200:
		return 6
	case hours > 20:
		return 5
	case hours > 5:
		return 4
	case hours > 1:
		return 3
	default:
		return 2
	}
}

// Normalize turns a batch of raw events into one Record per
// (user, game) pair:
//
//  1. exact-duplicate events are dropped,
//  2. purchases rate PurchasedRating, plays rate PlayRating(hours),
//  3. when a pair has both, the play rating wins.
//
// The result is sorted by (user, game) and is deterministic regardless
// of input order. An empty batch yields an empty (nil) result.
func Normalize(events []Event) ([]Record, error) {
	for _, e := range events {
		if _, err := ParseBehavior(string(e.Behavior)); err != nil {
			return nil, fmt.Errorf("user %d, game %q: %w", e.UserID, e.GameTitle, err)
		}
	}

	deduped := dropDuplicates(events)

	// Sort so that plays come before purchases within a pair ("play" <
	// "purchase"), and higher play times before lower ones. The first
	// row per pair is then the one that survives.
	sort.Slice(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.GameTitle != b.GameTitle {
			return a.GameTitle < b.GameTitle
		}
		if a.Behavior != b.Behavior {
			return a.Behavior < b.Behavior
		}
		return a.Value > b.Value
	})

	var records []Record
	for _, e := range deduped {
		if n := len(records); n > 0 && records[n-1].UserID == e.UserID && records[n-1].GameTitle == e.GameTitle {
			continue
		}
		r := Record{UserID: e.UserID, GameTitle: e.GameTitle}
		if e.Behavior == BehaviorPurchase {
			r.Rating = PurchasedRating
		} else {
			r.Rating = PlayRating(e.Value)
		}
		records = append(records, r)
	}
	return records, nil
}

func dropDuplicates(events []Event) []Event {
	seen := make(map[Event]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
