// Package gemini implements the Gemini generative AI client used for
// learning insights and study recommendations. Without an API key the
// client stays disabled and every call degrades to an empty result.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/edupulse/edupulse-analytics/pkg/circuitbreaker"
	"github.com/edupulse/edupulse-analytics/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("gemini: client not configured")

	// ErrAPIFailure is returned for non-2xx API responses.
	ErrAPIFailure = errors.New("gemini: api request failed")

	// ErrEmptyResponse is returned when the model produced no candidates.
	ErrEmptyResponse = errors.New("gemini: empty model response")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Gemini client.
type ClientConfig struct {
	// BaseURL is the generative language API base URL.
	BaseURL string

	// APIKey authenticates requests. Empty disables the client.
	APIKey string

	// Model is the model identifier used for generation.
	Model string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL: "https://generativelanguage.googleapis.com",
		APIKey:  apiKey,
		Model:   "gemini-pro",
		Timeout: 60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Gemini API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Gemini client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Model == "" {
		config.Model = "gemini-pro"
	}

	logger := config.Logger
	breaker := circuitbreaker.GeminiAPIBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.GeminiRetrier(),
		breaker: breaker,
	}
}

// Enabled reports whether an API key was provided.
func (c *Client) Enabled() bool {
	return c.config.APIKey != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Insights is a structured AI insight response.
type Insights struct {
	Insights    map[string]any `json:"insights"`
	Confidence  float64        `json:"confidence"`
	GeneratedAt string         `json:"generated_at"`
	UserID      string         `json:"user_id"`
}

// Recommendation is a single AI study recommendation.
type Recommendation struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	RelevanceScore float64 `json:"relevance_score"`
}

// GenerateInsights asks the model for learning insights over the given
// analytics context. Returns ErrNotConfigured when no API key is set.
func (c *Client) GenerateInsights(ctx context.Context, prompt, userID string, analyticsContext map[string]any) (*Insights, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	contextJSON, _ := json.Marshal(analyticsContext)
	fullPrompt := fmt.Sprintf(
		"You are an educational analytics assistant. Analyze the following learner data and answer the question.\n\nLearner data:\n%s\n\nQuestion: %s\n\nRespond with a JSON object of findings.",
		contextJSON, prompt,
	)

	text, err := c.generateContent(ctx, fullPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	result := &Insights{
		Confidence:  0.85,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		UserID:      userID,
	}

	// Prefer structured output; fall back to the raw text.
	if err := json.Unmarshal([]byte(text), &result.Insights); err != nil {
		result.Insights = map[string]any{
			"raw_insights": text,
			"structured":   false,
		}
	}

	return result, nil
}

// GetSmartRecommendations asks the model for up to limit study
// recommendations. A disabled client returns an empty slice, not an error.
func (c *Client) GetSmartRecommendations(ctx context.Context, userID string, history map[string]any, limit int) ([]Recommendation, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	historyJSON, _ := json.Marshal(history)
	prompt := fmt.Sprintf(
		"You are an educational analytics assistant. Based on this learning history, produce up to %d study recommendations as a JSON array of objects with title, description and relevance_score (1-10).\n\nLearning history:\n%s",
		limit, historyJSON,
	)

	text, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}

	var recommendations []Recommendation
	if err := json.Unmarshal([]byte(text), &recommendations); err != nil {
		recommendations = []Recommendation{{
			Title:          "AI Recommendation",
			Description:    text,
			RelevanceScore: 7,
		}}
	}

	if len(recommendations) > limit {
		recommendations = recommendations[:limit]
	}
	return recommendations, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generateContent calls the generateContent endpoint and returns the first
// candidate's text.
func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	var text string

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = c.doGenerate(ctx, prompt)
			return err
		})
	})

	return text, err
}

func (c *Client) doGenerate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.config.BaseURL, url.PathEscape(c.config.Model), url.QueryEscape(c.config.APIKey))

	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", retry.Retryable(fmt.Errorf("%w: status %d", ErrAPIFailure, resp.StatusCode))
	case resp.StatusCode >= 400:
		return "", retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrAPIFailure, resp.StatusCode, string(respBody)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", retry.Permanent(ErrEmptyResponse)
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
