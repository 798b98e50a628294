// Package recommend composes the rating normalizer, matrix builder,
// fuzzy resolver, and neighbor search into the two recommendation
// queries and the ingestion path.
package recommend

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/okhotin/steamrec/internal/fuzzy"
	"github.com/okhotin/steamrec/internal/knn"
	"github.com/okhotin/steamrec/internal/matrix"
	"github.com/okhotin/steamrec/internal/rating"
	"github.com/okhotin/steamrec/internal/steam"
	"github.com/okhotin/steamrec/internal/storage"
)

// ErrNoMatch is returned by SimilarGames when fuzzy resolution finds no
// candidate at or above the threshold. It is a reportable outcome, not a
// malfunction; callers present it as "no match found".
var ErrNoMatch = errors.New("no matching game in the catalog")

// Options tune query behavior. Zero values fall back to package defaults.
type Options struct {
	TopK           int
	FuzzyThreshold int
}

// Recommender owns the in-memory rating table and its persistent store.
// It is constructed explicitly and passed around; there is no shared
// process-wide instance. Methods are safe for concurrent use.
type Recommender struct {
	mu      sync.Mutex
	store   storage.RatingStore
	records []rating.Record

	topK           int
	fuzzyThreshold int
	logger         *slog.Logger
}

// New loads the rating table from store and returns a ready Recommender.
func New(store storage.RatingStore, opts Options) (*Recommender, error) {
	records, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading rating store: %w", err)
	}
	if opts.TopK <= 0 {
		opts.TopK = knn.DefaultK
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = fuzzy.DefaultThreshold
	}
	return &Recommender{
		store:          store,
		records:        records,
		topK:           opts.TopK,
		fuzzyThreshold: opts.FuzzyThreshold,
		logger:         slog.Default(),
	}, nil
}

// GameRecommendations is the full answer to a similar-games query:
// the resolved catalog title, every fuzzy candidate considered, and the
// ranked neighbors of the match.
type GameRecommendations struct {
	Query      string        `json:"query"`
	Match      string        `json:"match"`
	Candidates []fuzzy.Match `json:"candidates"`
	Neighbors  []knn.Neighbor `json:"neighbors"`
}

// SimilarGames resolves query against the game catalog and returns the k
// games nearest to the best match. Returns ErrNoMatch when resolution
// comes up empty and matrix.ErrEmptyDataset when no ratings exist.
func (r *Recommender) SimilarGames(query string, k int) (GameRecommendations, error) {
	if k <= 0 {
		k = r.topK
	}

	m, err := r.buildMatrix(matrix.ItemRows)
	if err != nil {
		return GameRecommendations{}, err
	}

	candidates := fuzzy.Resolve(query, m.RowKeys, r.fuzzyThreshold)
	if len(candidates) == 0 {
		return GameRecommendations{Query: query}, fmt.Errorf("%q: %w", query, ErrNoMatch)
	}
	match := candidates[0].Key

	neighbors, err := knn.Nearest(m, match, k)
	if err != nil {
		return GameRecommendations{}, err
	}

	r.logger.Debug("similar games query",
		"query", query,
		"match", match,
		"candidates", len(candidates),
		"neighbors", len(neighbors),
	)
	return GameRecommendations{
		Query:      query,
		Match:      match,
		Candidates: candidates,
		Neighbors:  neighbors,
	}, nil
}

// ForUser returns the k users whose rating vectors are nearest to
// userID's. Note the orientation: neighbors are other users, not games —
// the query runs over the user×item matrix and ranks its rows, matching
// the behavior of the original pipeline.
func (r *Recommender) ForUser(userID int64, k int) ([]knn.Neighbor, error) {
	if k <= 0 {
		k = r.topK
	}

	m, err := r.buildMatrix(matrix.UserRows)
	if err != nil {
		return nil, err
	}
	return knn.Nearest(m, matrix.UserKey(userID), k)
}

// Ingest normalizes a batch of raw events and appends the resulting
// records to the store. Exact duplicates within the batch collapse, but
// re-ingesting a batch that was already ingested will duplicate ratings —
// the store keeps no cross-batch identity.
func (r *Recommender) Ingest(events []rating.Event) (int, error) {
	records, err := rating.Normalize(events)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Append(records); err != nil {
		return 0, fmt.Errorf("appending to rating store: %w", err)
	}
	r.records = append(r.records, records...)

	r.logger.Info("ingested events", "events", len(events), "ratings", len(records))
	return len(records), nil
}

// Stats summarizes the current rating table.
type Stats struct {
	Users   int `json:"users"`
	Games   int `json:"games"`
	Ratings int `json:"ratings"`
}

// TableStats counts distinct users, games, and rating rows.
func (r *Recommender) TableStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make(map[int64]struct{})
	games := make(map[string]struct{})
	for _, rec := range r.records {
		users[rec.UserID] = struct{}{}
		games[rec.GameTitle] = struct{}{}
	}
	return Stats{Users: len(users), Games: len(games), Ratings: len(r.records)}
}

// buildMatrix snapshots the rating table and pivots it. The matrix is
// derived state, rebuilt per query; nothing is cached across calls.
func (r *Recommender) buildMatrix(orient matrix.Orientation) (*matrix.Matrix, error) {
	r.mu.Lock()
	snapshot := make([]rating.Record, len(r.records))
	copy(snapshot, r.records)
	r.mu.Unlock()

	return matrix.Build(snapshot, orient)
}

// EventsFromLibrary converts a fetched Steam library into play events.
// Games the endpoint reports without a display name key on their app ID
// so they still participate in the matrix.
func EventsFromLibrary(games []steam.OwnedGame) []rating.Event {
	events := make([]rating.Event, 0, len(games))
	for _, g := range games {
		title := g.Name
		if title == "" {
			title = "appid:" + strconv.FormatInt(g.AppID, 10)
		}
		events = append(events, rating.Event{
			UserID:    g.UserID,
			GameTitle: title,
			Behavior:  rating.BehaviorPlay,
			Value:     g.Hours,
		})
	}
	return events
}
