package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	cfg := DefaultClientConfig("test-key")
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

// modelReply wraps text into the generateContent response envelope.
func modelReply(text string) string {
	envelope := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(envelope)
	return string(raw)
}

func TestClient_Enabled(t *testing.T) {
	assert.True(t, NewClient(DefaultClientConfig("key")).Enabled())
	assert.False(t, NewClient(DefaultClientConfig("")).Enabled())
}

func TestClient_GenerateInsights_Structured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "What drives engagement?")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, modelReply(`{"trend":"improving","focus_area":"algorithms"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	insights, err := client.GenerateInsights(context.Background(), "What drives engagement?", "u1", map[string]any{
		"page_views": 40,
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", insights.UserID)
	assert.Equal(t, 0.85, insights.Confidence)
	assert.Equal(t, "improving", insights.Insights["trend"])
	assert.Equal(t, "algorithms", insights.Insights["focus_area"])
}

func TestClient_GenerateInsights_UnstructuredFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelReply("The learner shows steady progress."))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	insights, err := client.GenerateInsights(context.Background(), "Summarize.", "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, "The learner shows steady progress.", insights.Insights["raw_insights"])
	assert.Equal(t, false, insights.Insights["structured"])
}

func TestClient_GenerateInsights_NotConfigured(t *testing.T) {
	client := NewClient(DefaultClientConfig(""))

	_, err := client.GenerateInsights(context.Background(), "anything", "u1", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_GetSmartRecommendations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelReply(`[
			{"title":"Review recursion","description":"Revisit tree traversal drills","relevance_score":9},
			{"title":"Practice SQL","description":"Join exercises","relevance_score":7},
			{"title":"Read about heaps","description":"Priority queue basics","relevance_score":5}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	recs, err := client.GetSmartRecommendations(context.Background(), "u1", map[string]any{"sessions": 12}, 2)
	require.NoError(t, err)

	// Truncated to the requested limit.
	require.Len(t, recs, 2)
	assert.Equal(t, "Review recursion", recs[0].Title)
	assert.Equal(t, 9.0, recs[0].RelevanceScore)
}

func TestClient_GetSmartRecommendations_PlainTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelReply("Focus on spaced repetition this week."))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	recs, err := client.GetSmartRecommendations(context.Background(), "u1", nil, 5)
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, "AI Recommendation", recs[0].Title)
	assert.Equal(t, "Focus on spaced repetition this week.", recs[0].Description)
}

func TestClient_GetSmartRecommendations_Disabled(t *testing.T) {
	client := NewClient(DefaultClientConfig(""))

	recs, err := client.GetSmartRecommendations(context.Background(), "u1", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClient_EmptyModelResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GenerateInsights(context.Background(), "anything", "u1", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
