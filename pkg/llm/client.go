// Package llm is a thin JSON-over-HTTP client for the external LLM backend
// used by the Junior/Senior Orchestrated Q&A loop (pkg/qa). The backend
// itself is out of scope: Anna only needs a request/response transport with
// a known prompt/response schema.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Role is a chat message role, mirrored from the wire schema.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the prompt sent to the backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client talks to the external LLM backend over HTTP.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature *float64
	maxTokens   *int
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client pointed at baseURL (e.g. "http://127.0.0.1:8090").
// Model and sampling parameters default from the environment variables
// ANNA_LLM_MODEL, ANNA_LLM_TEMPERATURE and ANNA_LLM_MAX_TOKENS.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("llm: base URL must not be empty")
	}

	model := os.Getenv("ANNA_LLM_MODEL")
	if model == "" {
		model = "default"
	}

	var temperature *float64
	if v := os.Getenv("ANNA_LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = &t
		}
	}

	var maxTokens *int
	if v := os.Getenv("ANNA_LLM_MAX_TOKENS"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			maxTokens = &m
		}
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Info("llm client configured", "model", c.model, "base_url", baseURL)
	return c, nil
}

// completeRequest is the wire request body posted to POST {baseURL}/v1/complete.
type completeRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Completion is the structured reply from the backend.
type Completion struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
}

// completeResponse is the wire response body.
type completeResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Error        string `json:"error,omitempty"`
}

// Complete sends messages to the backend and returns the full structured
// reply. Used by the Translator, the Junior planner and the Senior reviewer; each
// caller supplies its own system prompt as the first message.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	body, err := json.Marshal(completeRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: backend returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out completeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("llm: backend error: %s", out.Error)
	}

	return &Completion{Content: out.Content, FinishReason: out.FinishReason}, nil
}
