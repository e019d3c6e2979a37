// Package publish uploads rendered clip artifacts to object storage and
// assembles the externally visible clip results.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/viralklip/clip-worker/internal/render"
	"github.com/viralklip/clip-worker/internal/storage"
)

// ErrPublishFailed wraps any upload failure. A single failed artifact aborts
// the whole batch so a job never completes with partial results.
var ErrPublishFailed = errors.New("publish failed")

// cacheControl is the one-year cache policy applied to every artifact.
const cacheControl = "public, max-age=31536000"

// PublishedClip is the immutable, externally visible result of one clip.
type PublishedClip struct {
	ClipNumber        int      `json:"clip_number"`
	StartTime         float64  `json:"start_time"`
	EndTime           float64  `json:"end_time"`
	Duration          float64  `json:"duration"`
	TranscriptSnippet string   `json:"transcript_snippet"`
	ViralScore        float64  `json:"viral_score"`
	ViralReason       string   `json:"viral_reason"`
	Keywords          []string `json:"keywords"`
	AspectRatio       string   `json:"aspect_ratio"`
	VideoURL          string   `json:"video_url"`
	ThumbnailURL      string   `json:"thumbnail_url"`
	SubtitleFileURL   string   `json:"subtitle_file_url,omitempty"`
	CaptionText       string   `json:"caption_text,omitempty"`
	ViewPrediction    int      `json:"view_prediction,omitempty"`
}

// Publisher uploads clip artifacts through a Storage backend.
type Publisher struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewPublisher creates a Publisher backed by the given storage.
func NewPublisher(store storage.Storage, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{storage: store, logger: logger}
}

// Publish uploads every artifact of every clip and returns the published
// results in input order. Keys are deterministic functions of the job id,
// clip number and aspect ratio, so re-publishing the same clips yields the
// same URLs. The first failed upload aborts the batch.
func (p *Publisher) Publish(ctx context.Context, jobID string, clips []render.Clip) ([]PublishedClip, error) {
	p.logger.Info("uploading clips", slog.String("job_id", jobID), slog.Int("count", len(clips)))

	published := make([]PublishedClip, 0, len(clips))
	for _, clip := range clips {
		result, err := p.publishOne(ctx, jobID, clip)
		if err != nil {
			return nil, fmt.Errorf("%w: clip %d (%s): %w", ErrPublishFailed, clip.ClipNumber, clip.AspectRatio, err)
		}
		published = append(published, result)

		p.logger.Info("uploaded clip",
			slog.String("job_id", jobID),
			slog.Int("clip_number", clip.ClipNumber),
			slog.String("aspect_ratio", clip.AspectRatio),
		)
	}

	p.logger.Info("all clips uploaded", slog.String("job_id", jobID))
	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, jobID string, clip render.Clip) (PublishedClip, error) {
	base := fmt.Sprintf("%s/clip_%02d_%s", jobID, clip.ClipNumber, strings.ReplaceAll(clip.AspectRatio, ":", "x"))

	videoURL, err := p.uploadFile(ctx, clip.VideoPath, base+".mp4", "video/mp4")
	if err != nil {
		return PublishedClip{}, fmt.Errorf("upload video: %w", err)
	}

	thumbnailURL, err := p.uploadFile(ctx, clip.ThumbnailPath, base+"_thumb.jpg", "image/jpeg")
	if err != nil {
		return PublishedClip{}, fmt.Errorf("upload thumbnail: %w", err)
	}

	subtitleURL, err := p.uploadFile(ctx, clip.SubtitlePath, base+".srt", "text/plain")
	if err != nil {
		return PublishedClip{}, fmt.Errorf("upload subtitle: %w", err)
	}

	moment := clip.Moment
	return PublishedClip{
		ClipNumber:        clip.ClipNumber,
		StartTime:         moment.StartTime,
		EndTime:           moment.EndTime,
		Duration:          moment.Duration(),
		TranscriptSnippet: moment.Transcript,
		ViralScore:        moment.ViralScore,
		ViralReason:       moment.Reason,
		Keywords:          moment.Keywords,
		AspectRatio:       clip.AspectRatio,
		VideoURL:          videoURL,
		ThumbnailURL:      thumbnailURL,
		SubtitleFileURL:   subtitleURL,
		CaptionText:       render.Caption(moment),
		ViewPrediction:    moment.ViewPrediction,
	}, nil
}

func (p *Publisher) uploadFile(ctx context.Context, path, key, contentType string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is produced by the renderer
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := p.storage.Upload(ctx, key, f, contentType, cacheControl)
	if err != nil {
		return "", err
	}
	return url, nil
}
