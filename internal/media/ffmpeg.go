package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidWindow is returned when the clip window is not positive.
	ErrInvalidWindow = errors.New("media: invalid clip window: duration must be positive")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// Output pixel dimensions per supported aspect ratio. An unrecognized ratio
// falls back to the 9:16 transform.
var cropFilters = map[string]string{
	"9:16": "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920",
	"16:9": "scale=1920:1080:force_original_aspect_ratio=increase,crop=1920:1080",
	"1:1":  "scale=1080:1080:force_original_aspect_ratio=increase,crop=1080:1080",
	"4:5":  "scale=1080:1350:force_original_aspect_ratio=increase,crop=1080:1350",
}

// CropFilter returns the ffmpeg video filter for the given aspect ratio.
func CropFilter(aspectRatio string) string {
	if f, ok := cropFilters[aspectRatio]; ok {
		return f
	}
	return cropFilters["9:16"]
}

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// ExtractClip cuts a window from the source video, applies the aspect-ratio
// transform, and encodes to H.264/AAC with faststart metadata placement.
func (p *FFmpegProcessor) ExtractClip(ctx context.Context, src, dst string, startSec, durationSec float64, aspectRatio string) error {
	if durationSec <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidWindow, durationSec)
	}

	args := []string{
		"-y",      // Overwrite output file without asking
		"-i", src, // Input file
		"-ss", formatSeconds(startSec), // Window start
		"-t", formatSeconds(durationSec), // Window length
		"-vf", CropFilter(aspectRatio), // Scale then center-crop
		"-c:v", "libx264", // Video codec
		"-preset", "medium", // Encoding speed preset
		"-crf", "23", // Quality (lower = better)
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		"-movflags", "+faststart", // Streaming-friendly metadata placement
		dst,
	}

	return p.runFFmpeg(ctx, args)
}

// Thumbnail extracts one frame at the 1 second mark, scaled to 480px wide.
func (p *FFmpegProcessor) Thumbnail(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-vf", "scale=480:-1",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// ExtractAudio strips the video track and encodes the audio as MP3.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-vn", // Drop the video stream
		"-acodec", "libmp3lame",
		"-q:a", "2",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// ProbeDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - path is a job-scoped scratch file, not user input
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("media: parse duration: %w", err)
	}

	return duration, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// formatSeconds renders a seconds value for ffmpeg arguments.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)
