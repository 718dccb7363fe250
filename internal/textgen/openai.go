package textgen

import (
	"context"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/abdulachik/inkbloom/internal/remote"
)

const (
	openAIService      = "openai chat"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIClient completes prompts through the Chat Completions API.
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
}

// OpenAIConfig holds configuration for the OpenAI text client.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// NewOpenAIClient creates a Chat Completions client. The SDK's own retries
// are disabled.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		limiter:   config.Limiter,
	}
}

// Complete sends one system instruction and one user message and returns the
// first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := remote.Wait(ctx, c.limiter); err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", remote.FromOpenAI(openAIService, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
