package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/viralklip/clip-worker/internal/media"
)

const (
	ytdlpProbeTimeout    = 2 * time.Minute
	ytdlpDownloadTimeout = 15 * time.Minute

	// Bounded-resolution selector: best mp4 video at most 720p tall plus
	// best m4a audio, falling back to the best combined stream.
	ytdlpFormat = "bv*[height<=720][ext=mp4]+ba[ext=m4a]/b[height<=720]/b"
)

// YtDlpProvider downloads platform videos using the local yt-dlp binary.
// It serves as the second link in the fallback chain when the YTStream API
// is unavailable.
type YtDlpProvider struct {
	binaryPath     string
	maxDurationSec int
	processor      media.Processor
}

// NewYtDlpProvider creates a new yt-dlp download provider.
// If binaryPath is empty, it defaults to "yt-dlp" (found via PATH).
func NewYtDlpProvider(binaryPath string, maxDurationSec int, processor media.Processor) *YtDlpProvider {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlpProvider{
		binaryPath:     binaryPath,
		maxDurationSec: maxDurationSec,
		processor:      processor,
	}
}

// Name identifies the provider in logs and errors.
func (p *YtDlpProvider) Name() string { return "yt-dlp" }

// Download probes the source duration, rejects oversized sources before
// transferring data, then downloads the video and derives the audio track.
func (p *YtDlpProvider) Download(ctx context.Context, req Request) error {
	videoURL := "https://www.youtube.com/watch?v=" + req.VideoID

	duration, err := p.probeDuration(ctx, videoURL)
	if err != nil {
		return err
	}
	if duration > p.maxDurationSec {
		return fmt.Errorf("%w: %ds (max: %ds)", ErrDurationExceeded, duration, p.maxDurationSec)
	}

	if err := p.downloadVideo(ctx, videoURL, req.VideoPath); err != nil {
		return err
	}

	if err := p.processor.ExtractAudio(ctx, req.VideoPath, req.AudioPath); err != nil {
		return fmt.Errorf("extract audio from video: %w", err)
	}
	return nil
}

// probeDuration asks yt-dlp for the source duration without downloading.
func (p *YtDlpProvider) probeDuration(ctx context.Context, videoURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ytdlpProbeTimeout)
	defer cancel()

	// #nosec G204 - binaryPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"--skip-download",
		"--print", "duration",
		"--no-warnings",
		videoURL,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("yt-dlp probe failed: %w, stderr: %s", err, stderr.String())
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" || out == "NA" {
		return 0, nil
	}
	// yt-dlp may print a float for some sources.
	f, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("yt-dlp returned unparseable duration %q", out)
	}
	return int(f), nil
}

// downloadVideo transfers the bounded-resolution video stream to disk.
func (p *YtDlpProvider) downloadVideo(ctx context.Context, videoURL, videoPath string) error {
	ctx, cancel := context.WithTimeout(ctx, ytdlpDownloadTimeout)
	defer cancel()

	// #nosec G204 - binaryPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-f", ytdlpFormat,
		"--merge-output-format", "mp4",
		"-o", videoPath,
		"--no-warnings",
		"--no-playlist",
		videoURL,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp download failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// Compile-time check that YtDlpProvider implements Provider.
var _ Provider = (*YtDlpProvider)(nil)
