// Package api exposes the recommender over HTTP (chi, bearer auth) and
// over MCP (stdio).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okhotin/steamrec/internal/knn"
	"github.com/okhotin/steamrec/internal/matrix"
	"github.com/okhotin/steamrec/internal/rating"
	"github.com/okhotin/steamrec/internal/recommend"
	"github.com/okhotin/steamrec/internal/steam"
)

const maxIngestBodySize = 10 << 20 // 10MB

// LibraryFetcher abstracts the Steam client for the API layer.
type LibraryFetcher interface {
	UserGames(ctx context.Context, steamID int64) ([]steam.OwnedGame, error)
}

type AppDeps struct {
	Recommender *recommend.Recommender
	Steam       LibraryFetcher
	Token       string
	Backend     string // storage backend name, reported in /stats
}

// NewAppHandler wires the HTTP routes. /health is open; everything else
// sits behind bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/recommend/games", handleSimilarGames(deps))
		r.Get("/recommend/users/{id}", handleForUser(deps))
		r.Post("/ingest", handleIngest(deps))
		r.Post("/sync/{steamID}", handleSync(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleSimilarGames(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter q is required")
			return
		}
		k := parseIntParam(r, "k", 0, 100)

		recs, err := deps.Recommender.SimilarGames(query, k)
		if errors.Is(err, recommend.ErrNoMatch) {
			httpError(w, http.StatusNotFound, "not_found", "no game in the catalog matches %q", query)
			return
		}
		if errors.Is(err, matrix.ErrEmptyDataset) {
			httpError(w, http.StatusConflict, "api_error", "rating store is empty; ingest events first")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recommendation failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	}
}

func handleForUser(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid user id: %v", err)
			return
		}
		k := parseIntParam(r, "k", 0, 100)

		neighbors, err := deps.Recommender.ForUser(userID, k)
		if errors.Is(err, knn.ErrKeyNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user %d has no ratings", userID)
			return
		}
		if errors.Is(err, matrix.ErrEmptyDataset) {
			httpError(w, http.StatusConflict, "api_error", "rating store is empty; ingest events first")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recommendation failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"user_id":   userID,
			"neighbors": neighbors,
		})
	}
}

// EventPayload is the wire form of one raw feedback event.
type EventPayload struct {
	UserID    int64   `json:"user_id"`
	GameTitle string  `json:"game_title"`
	Behavior  string  `json:"behavior"`
	Value     float64 `json:"value"`
}

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Events []EventPayload `json:"events"`
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Events) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "events is required and must not be empty")
			return
		}

		events := make([]rating.Event, len(req.Events))
		for i, e := range req.Events {
			events[i] = rating.Event{
				UserID:    e.UserID,
				GameTitle: e.GameTitle,
				Behavior:  rating.Behavior(e.Behavior),
				Value:     e.Value,
			}
		}

		n, err := deps.Recommender.Ingest(events)
		if errors.Is(err, rating.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid events: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingest failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"batch_id": uuid.New().String(),
			"ingested": n,
		})
	}
}

func handleSync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		steamID, err := strconv.ParseInt(chi.URLParam(r, "steamID"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid steam id: %v", err)
			return
		}

		games, err := deps.Steam.UserGames(r.Context(), steamID)
		if errors.Is(err, steam.ErrRateLimited) {
			httpError(w, http.StatusBadGateway, "api_error", "steam rate-limited the request; try again later")
			return
		}
		// An exhausted retry budget reads as an empty library, matching
		// the fetch contract.
		if err != nil && !errors.Is(err, steam.ErrRetriesExhausted) {
			httpError(w, http.StatusBadGateway, "api_error", "steam fetch failed: %v", err)
			return
		}

		n, err := deps.Recommender.Ingest(recommend.EventsFromLibrary(games))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingest failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"batch_id": uuid.New().String(),
			"steam_id": steamID,
			"fetched":  len(games),
			"ingested": n,
		})
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Backend string `json:"backend"`
	Users   int    `json:"users"`
	Games   int    `json:"games"`
	Ratings int    `json:"ratings"`
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Recommender.TableStats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatsResponse{
			Backend: deps.Backend,
			Users:   stats.Users,
			Games:   stats.Games,
			Ratings: stats.Ratings,
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
