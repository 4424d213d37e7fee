package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for OpenAIClient.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.4
)

var _ Generator = (*OpenAIClient)(nil)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint in JSON
// mode.
type OpenAIClient struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	logger      *slog.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(u string) Option {
	return func(c *OpenAIClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAIClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithModel overrides DefaultModel.
func WithModel(m string) Option {
	return func(c *OpenAIClient) {
		if m != "" {
			c.model = m
		}
	}
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(c *OpenAIClient) {
		c.temperature = t
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *OpenAIClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOpenAIClient creates a client that authenticates with apiKey.
func NewOpenAIClient(apiKey string, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		http:        &http.Client{Timeout: 90 * time.Second},
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends one chat completion and returns the JSON object from the
// first choice. HTTP 429 and 5xx responses, and transport failures, are
// TransientError; other non-200 responses are FatalError.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("generator: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generator: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("generator: %s: %w", req.Role, err)
		}
		return nil, NewTransientError(fmt.Errorf("generator: %s: %w", req.Role, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("generator: read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("generator: %s: HTTP %d: %s", req.Role, resp.StatusCode, truncate(string(respBody), 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, NewTransientError(err)
		}
		return nil, NewFatalError(err)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("generator: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("generator: %s: no choices in response", req.Role)
	}

	c.logger.Debug("chat completion",
		"role", req.Role,
		"project", req.ProjectID,
		"model", chat.Model,
		"tokens", chat.Usage.TotalTokens,
		"finish", chat.Choices[0].FinishReason,
		"elapsed", time.Since(start),
	)

	out, err := Object([]byte(chat.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("generator: %s: %w", req.Role, err)
	}
	return out, nil
}

func (c *OpenAIClient) endpoint() string {
	base := strings.TrimSuffix(c.baseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
