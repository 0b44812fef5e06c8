package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds a single provider call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const systemPrompt = "You are a helpful assistant for teachers. Follow the output format exactly."

var (
	// ErrTimeout is returned when a provider call exceeds its time budget.
	ErrTimeout = errors.New("content provider timed out")
	// ErrEmptyResponse is returned when the provider produced no content.
	ErrEmptyResponse = errors.New("content provider returned no content")
	// ErrMalformedJSON is returned when JSON mode output is not valid JSON.
	ErrMalformedJSON = errors.New("content provider returned malformed JSON")
)

// Provider is a generative-text service. GenerateJSON returns a raw JSON
// document for the caller to validate; GenerateText returns trimmed text.
type Provider interface {
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) error
}

// Config selects and configures a provider backend.
type Config struct {
	Provider string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New creates the provider named in cfg.
func New(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "gemini":
		return NewGemini(ctx, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a new OpenAI-compatible client.
func NewOpenAI(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		timeout: timeout,
	}
}

// Ping checks that the endpoint answers a model listing.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return timeoutErr(ctx, fmt.Errorf("list models: %w", err))
	}
	return nil
}

// GenerateJSON asks for a JSON object and returns it unparsed.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	raw, err := c.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}, 0.3)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(raw)
}

// GenerateText returns the provider's plain-text answer.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	raw, err := c.complete(ctx, prompt, nil, 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: format,
		Temperature:    temperature,
	})
	if err != nil {
		return "", timeoutErr(ctx, fmt.Errorf("LLM API call: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

// ExtractJSON strips surrounding whitespace and markdown code fences and
// checks that what remains is a JSON document.
func ExtractJSON(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, ErrEmptyResponse
	}
	b := []byte(s)
	if !json.Valid(b) {
		return nil, fmt.Errorf("%w: %.200s", ErrMalformedJSON, s)
	}
	return json.RawMessage(bytes.Clone(b)), nil
}

// timeoutErr turns a deadline hit on the per-call context into ErrTimeout.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
