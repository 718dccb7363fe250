package textgen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/inkbloom/internal/remote"
)

func TestClaudeClient_Complete(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
			assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

			var req claudeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "system text", req.System)
			assert.Equal(t, 512, req.MaxTokens)
			assert.Zero(t, req.Temperature)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "user text", req.Messages[0].Content)

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"Hello, "},{"type":"text","text":"world!"}],"stop_reason":"end_turn"}`)
		}))
		defer server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "test-api-key", BaseURL: server.URL, MaxTokens: 512})
		got, err := client.Complete(context.Background(), "system text", "user text")
		require.NoError(t, err)
		assert.Equal(t, "Hello, world!", got)
	})

	t.Run("rate limited", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
		}))
		defer server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), "s", "u")
		require.Error(t, err)
		assert.Equal(t, 1, calls, "no retries")

		var re *remote.Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, remote.KindRateLimit, re.Kind)
		assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
		assert.Equal(t, "Number of requests has exceeded your rate limit", re.Message)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "upstream exploded")
		}))
		defer server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), "s", "u")

		var re *remote.Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, remote.KindStatus, re.Kind)
		assert.Equal(t, "upstream exploded", re.Message)
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"id":"msg_1","content":[]}`)
		}))
		defer server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
		got, err := client.Complete(context.Background(), "s", "u")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `not json`)
		}))
		defer server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(context.Background(), "s", "u")

		kind, ok := remote.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, remote.KindMalformed, kind)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: url})
		_, err := client.Complete(context.Background(), "s", "u")

		kind, ok := remote.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, remote.KindTransport, kind)
	})

	t.Run("canceled context is not a service failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewClaudeClient(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Complete(ctx, "s", "u")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		_, ok := remote.KindOf(err)
		assert.False(t, ok)
	})
}

func TestNewClaudeClient_Defaults(t *testing.T) {
	c := NewClaudeClient(ClaudeConfig{APIKey: "k"})
	assert.Equal(t, defaultClaudeModel, c.model)
	assert.Equal(t, claudeAPIURL, c.url)
	assert.Equal(t, defaultMaxTokens, c.maxTokens)
	assert.NotNil(t, c.httpClient)
}

func TestOpenAIClient_Complete(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-test", body["model"])
			assert.EqualValues(t, 256, body["max_tokens"])
			assert.EqualValues(t, 0, body["temperature"])

			messages, ok := body["messages"].([]any)
			require.True(t, ok)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])
			assert.Equal(t, "user", messages[1].(map[string]any)["role"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"a scene"}}]}`)
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL + "/", MaxTokens: 256})
		got, err := client.Complete(context.Background(), "sys", "usr")
		require.NoError(t, err)
		assert.Equal(t, "a scene", got)
	})

	t.Run("rate limited without retry", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/"})
		_, err := client.Complete(context.Background(), "s", "u")
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, remote.IsRateLimited(err))
	})

	t.Run("no choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"m","choices":[]}`)
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/"})
		got, err := client.Complete(context.Background(), "s", "u")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
