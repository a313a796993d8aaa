// Package llm calls the hosted language model that composes answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable classifies every transport, timeout, non-2xx and
// empty-response failure of the model call. Callers recover from it locally
// with a fallback answer; it never reaches the end user as an error.
var ErrUnavailable = errors.New("llm: language model unavailable")

// Completer produces a completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config configures the chat completion client. The endpoint is any
// OpenAI-compatible chat completions API, OpenRouter by default.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Timeout bounds the whole HTTP round trip. Defaults to 60s.
	Timeout time.Duration
	// Temperature left nil selects the default of 0.7; an explicit zero
	// requests greedy decoding.
	Temperature *float32
	MaxTokens   int
}

// Client is a chat completion client with fixed sampling parameters.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClient builds the client. A missing API key is not a construction
// error: calls will fail and the caller's fallback path takes over.
func NewClient(cfg Config) *Client {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENROUTER_API_KEY"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	temperature := float32(0.7)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if temperature == 0 {
		// The request encoder drops a zero temperature, leaving the
		// API to pick its own default. The smallest positive float is
		// the documented way to request greedy decoding.
		temperature = math.SmallestNonzeroFloat32
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	clientCfg := openai.DefaultConfig(os.Getenv(keyEnv))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete sends one chat completion request and returns the model's text
// verbatim. Any failure is reported as ErrUnavailable.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response carried no choices", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
