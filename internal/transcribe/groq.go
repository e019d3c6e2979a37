package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Static errors for the Groq client.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("transcribe: groq API key is required")
	// ErrEmptyTranscript is returned when the provider returns no text.
	ErrEmptyTranscript = errors.New("transcribe: provider returned empty transcript")
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	whisperModel   = "whisper-large-v3"
)

// GroqTranscriber transcribes audio using the Groq Whisper API.
type GroqTranscriber struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GroqOption is a function that configures a GroqTranscriber.
type GroqOption func(*GroqTranscriber)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GroqOption {
	return func(t *GroqTranscriber) {
		t.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Groq API.
func WithBaseURL(url string) GroqOption {
	return func(t *GroqTranscriber) {
		t.baseURL = url
	}
}

// NewGroqTranscriber creates a new Groq Whisper client.
func NewGroqTranscriber(apiKey string, opts ...GroqOption) (*GroqTranscriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	t := &GroqTranscriber{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// verboseResponse is the verbose_json response shape from the Whisper API.
type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and requests segment-level timestamps.
func (t *GroqTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path is a job-scoped scratch file
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: open audio: %w", ErrTranscriptionFailed, err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: build request: %w", ErrTranscriptionFailed, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Transcript{}, fmt.Errorf("%w: read audio: %w", ErrTranscriptionFailed, err)
	}
	_ = mw.WriteField("model", whisperModel)
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("temperature", "0")
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("%w: build request: %w", ErrTranscriptionFailed, err)
	}

	url := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Transcript{}, fmt.Errorf("%w: status %d: %s", ErrTranscriptionFailed, resp.StatusCode, string(respBody))
	}

	var raw verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Transcript{}, fmt.Errorf("%w: decode response: %w", ErrTranscriptionFailed, err)
	}
	if raw.Text == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	tr := Transcript{
		Text:     raw.Text,
		Segments: make([]Segment, 0, len(raw.Segments)),
	}
	for _, s := range raw.Segments {
		tr.Segments = append(tr.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	return tr, nil
}

// Compile-time check that GroqTranscriber implements Transcriber.
var _ Transcriber = (*GroqTranscriber)(nil)
