package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/okhotin/steamrec/internal/recommend"
)

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	rec, err := recommend.New(&memStore{records: seedRecords()}, recommend.Options{})
	if err != nil {
		t.Fatalf("recommend.New: %v", err)
	}
	return MCPDeps{Recommender: rec, Backend: "csv"}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_SimilarGames(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSimilarGames(deps)

	req := makeCallToolRequest("similar_games", map[string]interface{}{
		"query": "counter strike",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var recs recommend.GameRecommendations
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if recs.Match != "Counter-Strike" {
		t.Fatalf("match = %q", recs.Match)
	}
}

func TestMCPTool_SimilarGames_NoMatch(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSimilarGames(deps)

	req := makeCallToolRequest("similar_games", map[string]interface{}{
		"query": "factorio",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A no-match is an answer, not a tool failure.
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}
}

func TestMCPTool_SimilarGames_MissingQuery(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSimilarGames(deps)

	result, err := handler(context.Background(), makeCallToolRequest("similar_games", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing query")
	}
}

func TestMCPTool_RecommendForUser(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpRecommendForUser(deps)

	req := makeCallToolRequest("recommend_for_user", map[string]interface{}{
		"user_id": "1",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var neighbors []json.RawMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &neighbors); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(neighbors) != 1 {
		t.Fatalf("expected 1 neighbor, got %d", len(neighbors))
	}
}

func TestMCPTool_RecommendForUser_BadID(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpRecommendForUser(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recommend_for_user", map[string]interface{}{
		"user_id": "not-a-number",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for bad user id")
	}
}

func TestMCPTool_IngestEvents(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpIngestEvents(deps)

	events := `[
		{"user_id":7,"game_title":"Factorio","behavior":"purchase","value":1},
		{"user_id":7,"game_title":"Factorio","behavior":"play","value":400}
	]`
	req := makeCallToolRequest("ingest_events", map[string]interface{}{
		"events": events,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	if text := toolText(t, result); text != "Ingested 1 ratings from 2 events" {
		t.Fatalf("unexpected response: %s", text)
	}

	stats := deps.Recommender.TableStats()
	if stats.Ratings != len(seedRecords())+1 {
		t.Fatalf("ratings = %d", stats.Ratings)
	}
}

func TestMCPTool_IngestEvents_BadJSON(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpIngestEvents(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ingest_events", map[string]interface{}{
		"events": `{"not":"an array"}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for malformed events")
	}
}

func TestMCPResource_Stats(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpResourceStats(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("store://stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var stats StatsResponse
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatalf("failed to parse stats JSON: %v", err)
	}
	if stats.Backend != "csv" || stats.Users != 2 || stats.Games != 2 || stats.Ratings != 4 {
		t.Fatalf("stats = %+v", stats)
	}
}
