// Package fetch resolves a video URL to local video and audio files.
// Platform URLs are served by an ordered chain of download providers tried in
// sequence until one fully succeeds; any single third-party proxy or API is
// individually unreliable (rate limits, IP blocks, deprecation), so the chain
// is the system's core resilience mechanism.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/viralklip/clip-worker/internal/media"
)

// Static errors for fetch operations.
var (
	// ErrInvalidURL is returned when a platform URL matches no known shape.
	ErrInvalidURL = errors.New("fetch: could not extract video ID from URL")
	// ErrDurationExceeded is returned when the source exceeds the duration ceiling.
	ErrDurationExceeded = errors.New("fetch: video duration exceeds the configured maximum")
	// ErrFetchFailed is returned when every provider in the chain fails.
	ErrFetchFailed = errors.New("fetch: all download providers failed")
	// ErrFetchIncomplete is returned when a download finished but an output
	// file is missing or empty.
	ErrFetchIncomplete = errors.New("fetch: download incomplete")
	// ErrNoProviders is returned when no providers are configured for a
	// platform URL.
	ErrNoProviders = errors.New("fetch: no download providers configured")
)

// Known URL shapes for the supported platform.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// Request carries the job-scoped destinations a provider must materialize.
type Request struct {
	// VideoID is the platform-specific identifier extracted from the URL.
	VideoID string
	// VideoPath is where the provider must write the video file.
	VideoPath string
	// AudioPath is where the provider must write the audio file.
	AudioPath string
}

// Provider defines the interface for platform download strategies.
// Each provider independently enforces the duration ceiling and must
// materialize both the video and the audio output.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Download resolves and transfers the video and audio for the request.
	Download(ctx context.Context, req Request) error
}

// IsPlatformURL reports whether the URL belongs to the supported platform.
func IsPlatformURL(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}

// ExtractVideoID extracts the platform video ID from a URL by matching known
// watch/short-link/embed/shorts shapes.
func ExtractVideoID(url string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
}

// Fetcher resolves a video URL to local video and audio files in the
// job-scoped scratch directory.
type Fetcher struct {
	providers  []Provider
	processor  media.Processor
	httpClient *http.Client
	tempDir    string
	logger     *slog.Logger
}

// Option is a function that configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for direct downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// NewFetcher creates a Fetcher over the given provider chain.
// The processor is used to derive audio from directly downloaded videos.
func NewFetcher(providers []Provider, processor media.Processor, tempDir string, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		providers:  providers,
		processor:  processor,
		httpClient: &http.Client{Timeout: 30 * time.Minute},
		tempDir:    tempDir,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the source video and its audio track into the job's scratch
// directory and returns both paths. Platform URLs go through the provider
// chain; any other URL gets a plain streamed download with audio derived from
// the video.
func (f *Fetcher) Fetch(ctx context.Context, url, jobID string) (videoPath, audioPath string, err error) {
	jobDir := filepath.Join(f.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return "", "", fmt.Errorf("fetch: create scratch directory: %w", err)
	}

	videoPath = filepath.Join(jobDir, "video.mp4")
	audioPath = filepath.Join(jobDir, "audio.mp3")

	if IsPlatformURL(url) {
		videoID, err := ExtractVideoID(url)
		if err != nil {
			return "", "", err
		}
		if err := f.fetchWithProviders(ctx, Request{VideoID: videoID, VideoPath: videoPath, AudioPath: audioPath}); err != nil {
			return "", "", err
		}
	} else {
		if err := f.fetchDirect(ctx, url, videoPath, audioPath); err != nil {
			return "", "", err
		}
	}

	if err := verifyOutputs(videoPath, audioPath); err != nil {
		return "", "", err
	}
	return videoPath, audioPath, nil
}

// fetchWithProviders attempts each provider in order until one fully succeeds.
// A DurationExceeded verdict stops the chain immediately: the source length
// does not change between providers.
func (f *Fetcher) fetchWithProviders(ctx context.Context, req Request) error {
	if len(f.providers) == 0 {
		return ErrNoProviders
	}

	var lastErr error
	for _, p := range f.providers {
		f.logger.Info("attempting download provider",
			slog.String("provider", p.Name()),
			slog.String("video_id", req.VideoID),
		)

		err := p.Download(ctx, req)
		if err == nil {
			f.logger.Info("download provider succeeded",
				slog.String("provider", p.Name()),
			)
			return nil
		}
		if errors.Is(err, ErrDurationExceeded) {
			return err
		}

		f.logger.Warn("download provider failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
		)
		lastErr = fmt.Errorf("%s: %w", p.Name(), err)

		// A failed attempt may leave partial files behind; remove them so the
		// next provider and the post-condition check see a clean slate.
		removeIfExists(req.VideoPath)
		removeIfExists(req.AudioPath)
	}

	return fmt.Errorf("%w: %w", ErrFetchFailed, lastErr)
}

// fetchDirect performs a plain streamed download and derives the audio track
// from the downloaded video.
func (f *Fetcher) fetchDirect(ctx context.Context, url, videoPath, audioPath string) error {
	f.logger.Info("downloading direct URL", slog.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: direct download status %d", ErrFetchFailed, resp.StatusCode)
	}

	if err := streamToFile(resp.Body, videoPath); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if err := f.processor.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return fmt.Errorf("%w: extract audio: %w", ErrFetchFailed, err)
	}
	return nil
}

// verifyOutputs enforces the post-condition that both outputs exist and are
// non-empty.
func verifyOutputs(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: %s was not created", ErrFetchIncomplete, filepath.Base(p))
		}
		if info.Size() == 0 {
			return fmt.Errorf("%w: %s is empty", ErrFetchIncomplete, filepath.Base(p))
		}
	}
	return nil
}

// streamToFile copies a response body to disk in chunks.
func streamToFile(r io.Reader, path string) error {
	f, err := os.Create(path) // #nosec G304 - path is a job-scoped scratch file
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove partial file", slog.String("path", path))
	}
}
