package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/okhotin/steamrec/internal/api"
	"github.com/okhotin/steamrec/internal/config"
	"github.com/okhotin/steamrec/internal/recommend"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSimilarRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /recommend/games": `{
			"query": "counter strike",
			"match": "Counter-Strike",
			"candidates": [{"key":"Counter-Strike","score":100}],
			"neighbors": [{"key":"Counter-Strike: Source","distance":0.02}]
		}`,
	})

	client := ts.client()
	path := fmt.Sprintf("/recommend/games?q=%s&k=%d", url.QueryEscape("counter strike"), 5)
	resp, err := client.get(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var recs recommend.GameRecommendations
	if err := decodeJSON(resp, &recs); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if recs.Match != "Counter-Strike" {
		t.Errorf("match = %q", recs.Match)
	}
	if len(recs.Neighbors) != 1 {
		t.Errorf("neighbors = %+v", recs.Neighbors)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if !strings.Contains(r.Path, "q=counter+strike") {
		t.Errorf("query not URL-encoded: %q", r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", r.Auth)
	}
}

func TestIngestRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest": `{"batch_id":"b-123","ingested":2}`,
	})

	client := ts.client()
	req := api.IngestRequest{Events: []api.EventPayload{
		{UserID: 1, GameTitle: "Dota 2", Behavior: "play", Value: 50},
		{UserID: 1, GameTitle: "Portal", Behavior: "purchase", Value: 1},
	}}

	resp, err := client.post(ctx, "/ingest", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		BatchID  string `json:"batch_id"`
		Ingested int    `json:"ingested"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.BatchID != "b-123" || result.Ingested != 2 {
		t.Errorf("result = %+v", result)
	}

	var body api.IngestRequest
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if len(body.Events) != 2 || body.Events[0].GameTitle != "Dota 2" {
		t.Errorf("body = %+v", body)
	}
}

func TestSyncRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /sync/42": `{"batch_id":"b-9","steam_id":42,"fetched":12,"ingested":12}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/sync/42", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		SteamID  int64 `json:"steam_id"`
		Fetched  int   `json:"fetched"`
		Ingested int   `json:"ingested"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.SteamID != 42 || result.Fetched != 12 {
		t.Errorf("result = %+v", result)
	}
	if ts.requests[0].Method != "POST" {
		t.Errorf("method = %q", ts.requests[0].Method)
	}
}

func TestForUserCommand_BadID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"foruser", "not-a-number"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for non-numeric user id")
	}
	if !strings.Contains(err.Error(), "invalid user id") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestSyncCommand_BadID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"sync", "abc"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for non-numeric steam id")
	}
	if !strings.Contains(err.Error(), "invalid steam id") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestStatusRequest_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/stats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Storage.Backend = "csv"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}
