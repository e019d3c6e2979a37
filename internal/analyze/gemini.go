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

// ErrGeminiAPIKeyRequired is returned when no Gemini API key is provided.
var ErrGeminiAPIKeyRequired = errors.New("analyze: gemini API key is required")

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-2.0-flash"
)

// GeminiProvider is the fallback analysis provider, backed by the Google
// Generative Language API.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// GeminiProviderOption is a function that configures a GeminiProvider.
type GeminiProviderOption func(*GeminiProvider)

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(c *http.Client) GeminiProviderOption {
	return func(p *GeminiProvider) {
		p.httpClient = c
	}
}

// WithGeminiBaseURL sets a custom base URL for the Gemini API.
func WithGeminiBaseURL(url string) GeminiProviderOption {
	return func(p *GeminiProvider) {
		p.baseURL = url
	}
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(apiKey string, opts ...GeminiProviderOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrGeminiAPIKeyRequired
	}

	p := &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    geminiBaseURL,
		model:      geminiModel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in logs and errors.
func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends the prompt and returns the model's raw text output.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("analyze: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("analyze: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze: gemini request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze: gemini status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("analyze: decode gemini response: %w", err)
	}
	if len(raw.Candidates) == 0 || len(raw.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyCompletion
	}

	var b bytes.Buffer
	for _, part := range raw.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}

	return b.String(), nil
}

// Compile-time check that GeminiProvider implements Provider.
var _ Provider = (*GeminiProvider)(nil)
