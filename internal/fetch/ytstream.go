package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/viralklip/clip-worker/internal/media"
)

// Static errors for the YTStream provider.
var (
	// ErrRapidAPIKeyRequired is returned when no RapidAPI key is provided.
	ErrRapidAPIKeyRequired = errors.New("fetch: RapidAPI key is required")
	// ErrNoVideoFormat is returned when the API payload has no usable video format.
	ErrNoVideoFormat = errors.New("fetch: no suitable video format found")
)

const ytstreamHost = "ytstream-download-youtube-videos.p.rapidapi.com"

// Browser-like headers to avoid 403 responses from the googlevideo CDN.
var downloadHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "identity;q=1, *;q=0",
	"Referer":         "https://www.youtube.com/",
	"Origin":          "https://www.youtube.com",
	"Sec-Fetch-Dest":  "video",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "cross-site",
}

// Bounded-resolution preference order for the video stream.
var preferredQualities = []string{"720p", "480p", "360p"}

// YTStreamProvider downloads platform videos through the YTStream RapidAPI.
// It resolves stream URLs and duration from the API payload, then transfers
// the streams directly from the CDN.
type YTStreamProvider struct {
	apiKey         string
	baseURL        string
	maxDurationSec int
	processor      media.Processor
	httpClient     *http.Client
}

// YTStreamOption is a function that configures a YTStreamProvider.
type YTStreamOption func(*YTStreamProvider)

// WithYTStreamHTTPClient sets a custom HTTP client.
func WithYTStreamHTTPClient(c *http.Client) YTStreamOption {
	return func(p *YTStreamProvider) {
		p.httpClient = c
	}
}

// WithYTStreamBaseURL sets a custom base URL for the YTStream API.
func WithYTStreamBaseURL(url string) YTStreamOption {
	return func(p *YTStreamProvider) {
		p.baseURL = url
	}
}

// NewYTStreamProvider creates a new YTStream download provider.
// maxDurationSec is the source duration ceiling; sources longer than this are
// rejected before any data transfer.
func NewYTStreamProvider(apiKey string, maxDurationSec int, processor media.Processor, opts ...YTStreamOption) (*YTStreamProvider, error) {
	if apiKey == "" {
		return nil, ErrRapidAPIKeyRequired
	}

	p := &YTStreamProvider{
		apiKey:         apiKey,
		baseURL:        "https://" + ytstreamHost,
		maxDurationSec: maxDurationSec,
		processor:      processor,
		httpClient:     &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in logs and errors.
func (p *YTStreamProvider) Name() string { return "ytstream" }

type ytstreamFormat struct {
	MimeType     string `json:"mimeType"`
	QualityLabel string `json:"qualityLabel"`
	URL          string `json:"url"`
}

type ytstreamResponse struct {
	Status          string           `json:"status"`
	Title           string           `json:"title"`
	Duration        json.RawMessage  `json:"duration"`
	Formats         []ytstreamFormat `json:"formats"`
	AdaptiveFormats []ytstreamFormat `json:"adaptiveFormats"`
}

// Download resolves the stream URLs for the video ID, checks the duration
// ceiling, and transfers the video and audio streams. When no separate audio
// stream is available, audio is derived from the downloaded video.
func (p *YTStreamProvider) Download(ctx context.Context, req Request) error {
	info, err := p.fetchInfo(ctx, req.VideoID)
	if err != nil {
		return err
	}

	duration := parseDuration(info.Duration)
	if duration > p.maxDurationSec {
		return fmt.Errorf("%w: %ds (max: %ds)", ErrDurationExceeded, duration, p.maxDurationSec)
	}

	videoURL := selectVideoFormat(info.Formats)
	if videoURL == "" {
		return ErrNoVideoFormat
	}
	audioURL := selectAudioFormat(info.AdaptiveFormats)

	if err := p.downloadStream(ctx, videoURL, req.VideoPath); err != nil {
		return fmt.Errorf("download video stream: %w", err)
	}

	if audioURL != "" {
		// The audio stream arrives as m4a; transcode to the mp3 the
		// transcriber expects.
		rawAudio := strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath)) + ".m4a"
		if err := p.downloadStream(ctx, audioURL, rawAudio); err != nil {
			return fmt.Errorf("download audio stream: %w", err)
		}
		if err := p.processor.ExtractAudio(ctx, rawAudio, req.AudioPath); err != nil {
			return fmt.Errorf("convert audio stream: %w", err)
		}
		removeIfExists(rawAudio)
		return nil
	}

	if err := p.processor.ExtractAudio(ctx, req.VideoPath, req.AudioPath); err != nil {
		return fmt.Errorf("extract audio from video: %w", err)
	}
	return nil
}

// fetchInfo queries the YTStream API for stream metadata.
func (p *YTStreamProvider) fetchInfo(ctx context.Context, videoID string) (*ytstreamResponse, error) {
	url := fmt.Sprintf("%s/dl?id=%s", p.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", p.apiKey)
	req.Header.Set("X-RapidAPI-Host", ytstreamHost)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ytstream status %d: %s", resp.StatusCode, string(body))
	}

	var info ytstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode ytstream response: %w", err)
	}
	if info.Status != "OK" {
		return nil, fmt.Errorf("ytstream returned status %q", info.Status)
	}
	return &info, nil
}

// downloadStream transfers a CDN stream to disk with browser-like headers.
func (p *YTStreamProvider) downloadStream(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range downloadHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	return streamToFile(resp.Body, path)
}

// selectVideoFormat picks an mp4 stream at a bounded resolution, preferring
// 720p, then lower; failing that, any video stream.
func selectVideoFormat(formats []ytstreamFormat) string {
	for _, quality := range preferredQualities {
		for _, f := range formats {
			if strings.HasPrefix(f.MimeType, "video/mp4") && strings.Contains(f.QualityLabel, quality) {
				return f.URL
			}
		}
	}
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "video/") {
			return f.URL
		}
	}
	return ""
}

// selectAudioFormat picks the first separate audio stream, if any.
func selectAudioFormat(formats []ytstreamFormat) string {
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio/") {
			return f.URL
		}
	}
	return ""
}

// parseDuration accepts the API's duration field, which may be a number of
// seconds or a "MM:SS" / "HH:MM:SS" string.
func parseDuration(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		m, _ := strconv.Atoi(parts[0])
		sec, _ := strconv.Atoi(parts[1])
		return m*60 + sec
	case 3:
		h, _ := strconv.Atoi(parts[0])
		m, _ := strconv.Atoi(parts[1])
		sec, _ := strconv.Atoi(parts[2])
		return h*3600 + m*60 + sec
	default:
		return 0
	}
}

// Compile-time check that YTStreamProvider implements Provider.
var _ Provider = (*YTStreamProvider)(nil)
