// Package textgen provides the text-generation clients used for prompt
// synthesis.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdulachik/inkbloom/internal/remote"
)

const (
	claudeAPIURL     = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion = "2023-06-01"
	claudeService    = "claude"

	defaultClaudeModel = "claude-sonnet-4-20250514"
	defaultMaxTokens   = 1024
)

// ClaudeClient is a client for the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
	model      string
	maxTokens  int
	limiter    *rate.Limiter
}

// ClaudeConfig holds configuration for the Claude client.
type ClaudeConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// NewClaudeClient creates a new Claude API client.
func NewClaudeClient(config ClaudeConfig) *ClaudeClient {
	model := config.Model
	if model == "" {
		model = defaultClaudeModel
	}
	url := config.BaseURL
	if url == "" {
		url = claudeAPIURL
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &ClaudeClient{
		apiKey:     config.APIKey,
		url:        url,
		httpClient: httpClient,
		model:      model,
		maxTokens:  maxTokens,
		limiter:    config.Limiter,
	}
}

// Message represents a message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *claudeError `json:"error,omitempty"`
}

type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends one system instruction and one user message to Claude and
// returns the text of the reply. Failures are returned as *remote.Error.
func (c *ClaudeClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := remote.Wait(ctx, c.limiter); err != nil {
		return "", err
	}

	req := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		System:      system,
		Messages: []Message{
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", remote.TransportError(claudeService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remote.TransportError(claudeService, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", remote.StatusError(claudeService, resp.StatusCode, errorMessage(respBody))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return "", remote.MalformedError(claudeService, fmt.Errorf("unmarshal response: %w", err))
	}

	if claudeResp.Error != nil {
		return "", remote.MalformedError(claudeService, fmt.Errorf("%s: %s", claudeResp.Error.Type, claudeResp.Error.Message))
	}

	// An empty reply is returned as empty text; replies are not validated.
	var text strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return text.String(), nil
}

// errorMessage pulls the message out of an Anthropic error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error *claudeError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
