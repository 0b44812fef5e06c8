package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini talks to the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini-backed provider. baseURL may be empty.
func NewGemini(ctx context.Context, baseURL, apiKey, modelName string, timeout time.Duration) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{client: client, model: modelName, timeout: timeout}, nil
}

// Ping fetches the configured model's metadata.
func (g *Gemini) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return timeoutErr(ctx, fmt.Errorf("get model %s: %w", g.model, err))
	}
	return nil
}

// GenerateJSON asks for an application/json response and returns it unparsed.
func (g *Gemini) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	raw, err := g.generate(ctx, prompt, "application/json", 0.3)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(raw)
}

// GenerateText returns the model's plain-text answer.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	raw, err := g.generate(ctx, prompt, "", 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (g *Gemini) generate(ctx context.Context, prompt, mimeType string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  mimeType,
		Temperature:       genai.Ptr(temperature),
	})
	if err != nil {
		return "", timeoutErr(ctx, fmt.Errorf("gemini generate content: %w", err))
	}

	text := result.Text()
	slog.Debug("LLM response", "provider", "gemini", "raw", text)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
