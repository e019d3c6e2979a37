// Package render cuts viral moments into clips for each requested aspect
// ratio, producing a video, thumbnail, and subtitle file per pair.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/viralklip/clip-worker/internal/analyze"
	"github.com/viralklip/clip-worker/internal/media"
)

// ErrRenderFailed is returned when any encoder invocation fails. The whole
// batch is aborted: a partially rendered job is not useful to the publisher.
var ErrRenderFailed = errors.New("render: clip rendering failed")

// Clip is a rendered (moment, aspect ratio) pair with its local artifacts.
// Clips are transient: the publisher consumes them and the scratch directory
// is removed afterwards.
type Clip struct {
	// ClipNumber is the 1-based moment index, stable within a job.
	ClipNumber int
	// AspectRatio is the requested ratio, e.g. "9:16".
	AspectRatio string
	// VideoPath is the local path to the rendered clip.
	VideoPath string
	// ThumbnailPath is the local path to the still-frame thumbnail.
	ThumbnailPath string
	// SubtitlePath is the local path to the SRT subtitle file.
	SubtitlePath string
	// Moment is the source moment this clip was cut from.
	Moment analyze.Moment
}

// Renderer produces clips using an injected media processor.
type Renderer struct {
	processor media.Processor
	logger    *slog.Logger
}

// NewRenderer creates a Renderer backed by the given processor.
func NewRenderer(processor media.Processor, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{processor: processor, logger: logger}
}

// Render cuts every (moment, aspect ratio) pair from the source video into
// the clips/ subdirectory next to it. Any single encoder failure aborts the
// batch with ErrRenderFailed.
func (r *Renderer) Render(ctx context.Context, videoPath string, moments []analyze.Moment, aspectRatios []string) ([]Clip, error) {
	outputDir := filepath.Join(filepath.Dir(videoPath), "clips")
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", ErrRenderFailed, err)
	}

	r.logger.Info("rendering clips",
		slog.Int("moments", len(moments)),
		slog.Int("aspect_ratios", len(aspectRatios)),
	)

	clips := make([]Clip, 0, len(moments)*len(aspectRatios))
	for i, moment := range moments {
		clipNumber := i + 1
		for _, ratio := range aspectRatios {
			clip, err := r.renderOne(ctx, videoPath, outputDir, clipNumber, moment, ratio)
			if err != nil {
				return nil, fmt.Errorf("%w: clip %d (%s): %w", ErrRenderFailed, clipNumber, ratio, err)
			}
			clips = append(clips, clip)
		}
	}

	r.logger.Info("rendering complete", slog.Int("clips", len(clips)))
	return clips, nil
}

// renderOne produces the video, thumbnail, and subtitle artifacts for a
// single (moment, aspect ratio) pair.
func (r *Renderer) renderOne(ctx context.Context, videoPath, outputDir string, clipNumber int, moment analyze.Moment, ratio string) (Clip, error) {
	base := fmt.Sprintf("clip_%02d_%s", clipNumber, ratioSlug(ratio))
	clipPath := filepath.Join(outputDir, base+".mp4")
	thumbPath := filepath.Join(outputDir, base+"_thumb.jpg")
	subtitlePath := filepath.Join(outputDir, base+".srt")

	duration := moment.Duration()

	r.logger.Info("creating clip",
		slog.Int("clip_number", clipNumber),
		slog.String("aspect_ratio", ratio),
		slog.Float64("start", moment.StartTime),
		slog.Float64("end", moment.EndTime),
	)

	if err := r.processor.ExtractClip(ctx, videoPath, clipPath, moment.StartTime, duration, ratio); err != nil {
		return Clip{}, fmt.Errorf("extract clip: %w", err)
	}
	if err := r.processor.Thumbnail(ctx, clipPath, thumbPath); err != nil {
		return Clip{}, fmt.Errorf("generate thumbnail: %w", err)
	}
	if err := writeSubtitleFile(subtitlePath, moment.Transcript, duration); err != nil {
		return Clip{}, fmt.Errorf("write subtitle: %w", err)
	}

	return Clip{
		ClipNumber:    clipNumber,
		AspectRatio:   ratio,
		VideoPath:     clipPath,
		ThumbnailPath: thumbPath,
		SubtitlePath:  subtitlePath,
		Moment:        moment,
	}, nil
}

// ratioSlug renders an aspect ratio for use in filenames and storage keys,
// e.g. "9:16" -> "9x16".
func ratioSlug(ratio string) string {
	out := make([]byte, len(ratio))
	for i := 0; i < len(ratio); i++ {
		if ratio[i] == ':' {
			out[i] = 'x'
		} else {
			out[i] = ratio[i]
		}
	}
	return string(out)
}

// writeSubtitleFile emits a single-cue SRT file covering the full clip
// duration. Word-level timing alignment is out of scope.
func writeSubtitleFile(path, text string, durationSec float64) error {
	hours := int(durationSec) / 3600
	minutes := (int(durationSec) % 3600) / 60
	seconds := int(durationSec) % 60
	millis := int((durationSec - float64(int(durationSec))) * 1000)

	content := fmt.Sprintf("1\n00:00:00,000 --> %02d:%02d:%02d,%03d\n%s\n",
		hours, minutes, seconds, millis, text)

	return os.WriteFile(path, []byte(content), 0o600)
}
