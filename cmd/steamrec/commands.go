package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okhotin/steamrec/internal/api"
	"github.com/okhotin/steamrec/internal/config"
	"github.com/okhotin/steamrec/internal/recommend"
	"github.com/okhotin/steamrec/internal/storage"
)

const syncConcurrency = 4

// --- similar ---

var similarCmd = &cobra.Command{
	Use:   "similar <game title>",
	Short: "Find games similar to a title",
	Long: `Find games similar to a title. The title is matched fuzzily
against the catalog, so an approximate name is fine.

Examples:
  steamrec similar counter strike
  steamrec similar "The Witcher 3" --k 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/recommend/games?q=%s&k=%d", url.QueryEscape(query), k)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var recs recommend.GameRecommendations
		if err := decodeJSON(resp, &recs); err != nil {
			return err
		}

		if len(recs.Candidates) > 1 {
			fmt.Printf("Found possible matches for %q:\n", recs.Query)
			for _, c := range recs.Candidates {
				fmt.Printf("  %s [%d]\n", c.Key, c.Score)
			}
			fmt.Println()
		}

		fmt.Printf("Games similar to %s:\n", colorize(colorBold, recs.Match))
		for i, n := range recs.Neighbors {
			fmt.Printf("  %d. %s (distance %.4f)\n", i+1, n.Key, n.Distance)
		}
		return nil
	},
}

// --- foruser ---

var forUserCmd = &cobra.Command{
	Use:   "foruser <user-id>",
	Short: "Find users with the closest play history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[0], err)
		}
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/recommend/users/%d?k=%d", userID, k))
		if err != nil {
			return err
		}

		var body struct {
			UserID    int64 `json:"user_id"`
			Neighbors []struct {
				Key      string  `json:"key"`
				Distance float64 `json:"distance"`
			} `json:"neighbors"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		if len(body.Neighbors) == 0 {
			fmt.Println("No similar users found.")
			return nil
		}

		fmt.Printf("Users closest to %d:\n", body.UserID)
		for i, n := range body.Neighbors {
			fmt.Printf("  %d. user %s (distance %.4f)\n", i+1, n.Key, n.Distance)
		}
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <events.csv>",
	Short: "Ingest a CSV of raw feedback events",
	Long: `Ingest a CSV of raw feedback events into the rating store.

The file has no header; each row is
  user_id,game_title,behavior,value,ignored
where behavior is "play" (value = hours) or "purchase" (value = 1).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := storage.ReadEventsCSV(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if len(events) == 0 {
			printWarning("%s contains no events", args[0])
			return nil
		}

		payload := make([]api.EventPayload, len(events))
		for i, e := range events {
			payload[i] = api.EventPayload{
				UserID:    e.UserID,
				GameTitle: e.GameTitle,
				Behavior:  string(e.Behavior),
				Value:     e.Value,
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", api.IngestRequest{Events: payload})
		if err != nil {
			return err
		}

		var result struct {
			BatchID  string `json:"batch_id"`
			Ingested int    `json:"ingested"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Ingested %d ratings from %d events (batch %s)", result.Ingested, len(events), result.BatchID)
		return nil
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync <steam-id>...",
	Short: "Fetch Steam libraries and ingest them as play events",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steamIDs := make([]int64, len(args))
		for i, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid steam id %q: %w", a, err)
			}
			steamIDs[i] = id
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		type syncResult struct {
			SteamID  int64 `json:"steam_id"`
			Fetched  int   `json:"fetched"`
			Ingested int   `json:"ingested"`
		}

		var mu sync.Mutex
		var results []syncResult

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(syncConcurrency)
		for _, id := range steamIDs {
			g.Go(func() error {
				printStep("Syncing %d...", id)
				resp, err := client.post(ctx, fmt.Sprintf("/sync/%d", id), nil)
				if err != nil {
					return err
				}
				var r syncResult
				if err := decodeJSON(resp, &r); err != nil {
					return fmt.Errorf("user %d: %w", id, err)
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, r := range results {
			printSuccess("User %d: fetched %d games, ingested %d ratings", r.SteamID, r.Fetched, r.Ingested)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	similarCmd.Flags().Int("k", 0, "maximum number of similar games (0 = server default)")
	forUserCmd.Flags().Int("k", 0, "maximum number of neighbors (0 = server default)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
