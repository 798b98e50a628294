package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/okhotin/steamrec/internal/knn"
	"github.com/okhotin/steamrec/internal/matrix"
	"github.com/okhotin/steamrec/internal/rating"
	"github.com/okhotin/steamrec/internal/recommend"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Recommender *recommend.Recommender
	Backend     string
}

// NewMCPServer creates an MCP server with the recommendation tools and
// the store stats resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"steamrec",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("steamrec — collaborative-filtering game recommendations from Steam play history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("similar_games",
			mcp.WithDescription("Find games similar to a title. The title is matched fuzzily against the catalog."),
			mcp.WithString("query", mcp.Description("Game title to search for"), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Maximum number of similar games (default 10)")),
		),
		mcpSimilarGames(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_for_user",
			mcp.WithDescription("Find the users whose play history is closest to the given user's."),
			mcp.WithString("user_id", mcp.Description("Numeric user ID"), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Maximum number of neighbors (default 10)")),
		),
		mcpRecommendForUser(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_events",
			mcp.WithDescription("Ingest raw feedback events (play hours / purchases) into the rating store."),
			mcp.WithString("events", mcp.Description("JSON array of {user_id, game_title, behavior, value} objects"), mcp.Required()),
		),
		mcpIngestEvents(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"store://stats",
			"Rating Store Stats",
			mcp.WithResourceDescription("Distinct user, game, and rating counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpSimilarGames(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		k := req.GetInt("k", 0)

		recs, err := deps.Recommender.SimilarGames(query, k)
		if errors.Is(err, recommend.ErrNoMatch) {
			return mcpText(fmt.Sprintf("No game in the catalog matches %q.", query)), nil
		}
		if errors.Is(err, matrix.ErrEmptyDataset) {
			return mcpError("the rating store is empty; ingest events first"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		b, err := json.Marshal(recs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecommendForUser(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		var userID int64
		if _, err := fmt.Sscanf(rawID, "%d", &userID); err != nil {
			return mcpError(fmt.Sprintf("invalid user_id %q", rawID)), nil
		}
		k := req.GetInt("k", 0)

		neighbors, err := deps.Recommender.ForUser(userID, k)
		if errors.Is(err, knn.ErrKeyNotFound) {
			return mcpText(fmt.Sprintf("User %d has no ratings.", userID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		b, err := json.Marshal(neighbors)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIngestEvents(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		eventsJSON, err := req.RequireString("events")
		if err != nil {
			return mcpError("events is required"), nil
		}

		var payload []EventPayload
		if err := json.Unmarshal([]byte(eventsJSON), &payload); err != nil {
			return mcpError(fmt.Sprintf("invalid events JSON: %v", err)), nil
		}

		events := make([]rating.Event, len(payload))
		for i, e := range payload {
			events[i] = rating.Event{
				UserID:    e.UserID,
				GameTitle: e.GameTitle,
				Behavior:  rating.Behavior(e.Behavior),
				Value:     e.Value,
			}
		}

		n, err := deps.Recommender.Ingest(events)
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Ingested %d ratings from %d events", n, len(events))), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats := deps.Recommender.TableStats()

		b, err := json.Marshal(StatsResponse{
			Backend: deps.Backend,
			Users:   stats.Users,
			Games:   stats.Games,
			Ratings: stats.Ratings,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
