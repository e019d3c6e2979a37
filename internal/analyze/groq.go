package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for the Groq provider.
var (
	// ErrGroqAPIKeyRequired is returned when no Groq API key is provided.
	ErrGroqAPIKeyRequired = errors.New("analyze: groq API key is required")
	// ErrEmptyCompletion is returned when the model returns no choices.
	ErrEmptyCompletion = errors.New("analyze: provider returned empty completion")
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	groqModel     = "llama-3.3-70b-versatile"
	groqMaxTokens = 4096
	systemPrompt  = "You are an expert at identifying viral TikTok/Reels moments. Always respond with valid JSON only."
)

// GroqProvider is the primary analysis provider, backed by the Groq
// chat-completions API.
type GroqProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// GroqProviderOption is a function that configures a GroqProvider.
type GroqProviderOption func(*GroqProvider)

// WithGroqHTTPClient sets a custom HTTP client.
func WithGroqHTTPClient(c *http.Client) GroqProviderOption {
	return func(p *GroqProvider) {
		p.httpClient = c
	}
}

// WithGroqBaseURL sets a custom base URL for the Groq API.
func WithGroqBaseURL(url string) GroqProviderOption {
	return func(p *GroqProvider) {
		p.baseURL = url
	}
}

// WithGroqModel overrides the default model.
func WithGroqModel(model string) GroqProviderOption {
	return func(p *GroqProvider) {
		p.model = model
	}
}

// NewGroqProvider creates a new Groq chat-completions provider.
func NewGroqProvider(apiKey string, opts ...GroqProviderOption) (*GroqProvider, error) {
	if apiKey == "" {
		return nil, ErrGroqAPIKeyRequired
	}

	p := &GroqProvider{
		apiKey:     apiKey,
		baseURL:    groqBaseURL,
		model:      groqModel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in logs and errors.
func (p *GroqProvider) Name() string { return "groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and returns the model's raw text output.
func (p *GroqProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   groqMaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("analyze: marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("analyze: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze: groq request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze: groq status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("analyze: decode groq response: %w", err)
	}
	if len(raw.Choices) == 0 || raw.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}

	return raw.Choices[0].Message.Content, nil
}

// Compile-time check that GroqProvider implements Provider.
var _ Provider = (*GroqProvider)(nil)
