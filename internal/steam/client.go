// Package steam fetches a user's owned-games library from the Steam
// community XML endpoint.
package steam

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Fetch outcomes, kept distinct so callers can tell "give up gracefully"
// from "stop immediately":
//   - ErrRateLimited: the endpoint answered 429; abort, no retries.
//   - ErrRetriesExhausted: the retry budget ran out; callers treat the
//     result as an empty library, not a failure.
var (
	ErrRateLimited      = errors.New("steam: rate limited")
	ErrRetriesExhausted = errors.New("steam: retries exhausted")
)

const (
	// DefaultBaseURL is the public Steam community endpoint.
	DefaultBaseURL = "https://steamcommunity.com"

	defaultRetries = 3
	maxBodySize    = 10 << 20 // 10MB
)

// OwnedGame is one row of a user's library.
type OwnedGame struct {
	UserID int64
	AppID  int64
	Name   string
	Hours  float64
}

// Client fetches game libraries over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	logger     *slog.Logger
}

// NewClient creates a Client for the given base URL; empty means
// DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retries:    defaultRetries,
		logger:     slog.Default(),
	}
}

// gamesList mirrors the community XML payload.
type gamesList struct {
	XMLName xml.Name    `xml:"gamesList"`
	Games   []gameEntry `xml:"games>game"`
}

type gameEntry struct {
	AppID         int64  `xml:"appID"`
	Name          string `xml:"name"`
	HoursOnRecord string `xml:"hoursOnRecord"`
}

// UserGames fetches the library of the given Steam ID. Non-200 responses
// and malformed XML both consume the retry budget; a 429 aborts
// immediately with ErrRateLimited. When the budget is exhausted the
// returned slice is nil and the error is ErrRetriesExhausted.
func (c *Client) UserGames(ctx context.Context, steamID int64) ([]OwnedGame, error) {
	url := fmt.Sprintf("%s/profiles/%d/games?tab=all&xml=1", c.baseURL, steamID)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		list, err := c.fetchOnce(ctx, url)
		if err == nil {
			return toOwnedGames(steamID, list)
		}
		if errors.Is(err, ErrRateLimited) {
			return nil, fmt.Errorf("user %d: %w", steamID, ErrRateLimited)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("steam fetch failed",
			"steam_id", steamID,
			"attempt", attempt,
			"retries_left", c.retries-attempt,
			"error", err,
		)
	}
	return nil, fmt.Errorf("user %d after %d attempts (last: %v): %w", steamID, c.retries, lastErr, ErrRetriesExhausted)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*gamesList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var list gamesList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing games XML: %w", err)
	}
	return &list, nil
}

func toOwnedGames(steamID int64, list *gamesList) ([]OwnedGame, error) {
	games := make([]OwnedGame, 0, len(list.Games))
	for _, g := range list.Games {
		hours, err := parseHours(g.HoursOnRecord)
		if err != nil {
			return nil, fmt.Errorf("app %d: %w", g.AppID, err)
		}
		games = append(games, OwnedGame{
			UserID: steamID,
			AppID:  g.AppID,
			Name:   g.Name,
			Hours:  hours,
		})
	}
	return games, nil
}

// parseHours handles the endpoint's comma-separated thousands
// ("1,476.4") and treats a missing element as zero hours.
func parseHours(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	h, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing hoursOnRecord %q: %w", s, err)
	}
	return h, nil
}
