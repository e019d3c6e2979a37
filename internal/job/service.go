package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/viralklip/clip-worker/internal/analyze"
	"github.com/viralklip/clip-worker/internal/publish"
	"github.com/viralklip/clip-worker/internal/render"
	"github.com/viralklip/clip-worker/internal/transcribe"
)

// Progress checkpoints reported after each stage completes.
const (
	progressDownloaded  = 20
	progressTranscribed = 40
	progressAnalyzed    = 60
	progressClipped     = 80
	progressUploaded    = 100
)

// Fetcher resolves a video URL into local video and audio files.
type Fetcher interface {
	Fetch(ctx context.Context, url, jobID string) (videoPath, audioPath string, err error)
}

// Analyzer selects viral moments from a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, tr transcribe.Transcript, targetCount int) ([]analyze.Moment, error)
}

// Renderer cuts clips for every (moment, aspect ratio) pair.
type Renderer interface {
	Render(ctx context.Context, videoPath string, moments []analyze.Moment, aspectRatios []string) ([]render.Clip, error)
}

// Publisher uploads rendered clips and returns the published results.
type Publisher interface {
	Publish(ctx context.Context, jobID string, clips []render.Clip) ([]publish.PublishedClip, error)
}

// CreateInput contains the parameters for a new clipping job.
type CreateInput struct {
	// VideoURL is the source video to clip.
	VideoURL string
	// ProjectID is an opaque caller-supplied project reference.
	ProjectID string
	// UserID is an opaque caller-supplied user reference.
	UserID string
	// TargetCount is the requested number of moments.
	TargetCount int
	// AspectRatios are the requested output ratios.
	AspectRatios []string
}

// Service orchestrates the clipping pipeline. It owns the job record,
// sequences the five stages, updates progress after each one, and records
// the first fatal stage error on the job.
type Service struct {
	repo        Repository
	fetcher     Fetcher
	transcriber transcribe.Transcriber
	analyzer    Analyzer
	renderer    Renderer
	publisher   Publisher
	tempDir     string
	logger      *slog.Logger
}

// NewService creates a Service with all pipeline stages injected.
func NewService(
	repo Repository,
	fetcher Fetcher,
	transcriber transcribe.Transcriber,
	analyzer Analyzer,
	renderer Renderer,
	publisher Publisher,
	tempDir string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		fetcher:     fetcher,
		transcriber: transcriber,
		analyzer:    analyzer,
		renderer:    renderer,
		publisher:   publisher,
		tempDir:     tempDir,
		logger:      logger,
	}
}

// CreateJob creates a new job in pending state and persists it.
func (s *Service) CreateJob(ctx context.Context, input CreateInput) (*Job, error) {
	job := New(input.ProjectID, input.UserID)
	job.VideoURL = input.VideoURL
	job.TargetCount = input.TargetCount
	job.AspectRatios = input.AspectRatios

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("video_url", input.VideoURL),
		slog.Int("target_count", input.TargetCount),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Process runs the full pipeline for a previously created job:
// download, transcribe, analyze, render, publish. The job record is
// updated and persisted after every stage; the first stage error marks
// the job failed and stops the pipeline.
func (s *Service) Process(ctx context.Context, job *Job) error {
	logger := s.logger.With(slog.String("job_id", job.ID))

	if err := s.advance(ctx, job, StatusDownloading); err != nil {
		return err
	}
	videoPath, audioPath, err := s.fetcher.Fetch(ctx, job.VideoURL, job.ID)
	if err != nil {
		return s.fail(ctx, job, logger, err)
	}
	s.checkpoint(ctx, job, progressDownloaded)

	if err := s.advance(ctx, job, StatusTranscribing); err != nil {
		return err
	}
	transcript, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return s.fail(ctx, job, logger, err)
	}
	s.checkpoint(ctx, job, progressTranscribed)

	if err := s.advance(ctx, job, StatusAnalyzing); err != nil {
		return err
	}
	moments, err := s.analyzer.Analyze(ctx, transcript, job.TargetCount)
	if err != nil {
		return s.fail(ctx, job, logger, err)
	}
	logger.Info("moments selected", slog.Int("count", len(moments)))
	s.checkpoint(ctx, job, progressAnalyzed)

	if err := s.advance(ctx, job, StatusClipping); err != nil {
		return err
	}
	clips, err := s.renderer.Render(ctx, videoPath, moments, job.AspectRatios)
	if err != nil {
		return s.fail(ctx, job, logger, err)
	}
	s.checkpoint(ctx, job, progressClipped)

	if err := s.advance(ctx, job, StatusUploading); err != nil {
		return err
	}
	published, err := s.publisher.Publish(ctx, job.ID, clips)
	if err != nil {
		return s.fail(ctx, job, logger, err)
	}
	job.UpdateProgress(progressUploaded)

	result := &Result{
		Transcript: transcript.Text,
		Clips:      published,
		TotalClips: len(published),
	}
	if err := job.Complete(result); err != nil {
		return s.fail(ctx, job, logger, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Error("failed to save completed job", slog.String("error", err.Error()))
		return err
	}

	s.cleanup(job.ID, logger)

	logger.Info("job completed", slog.Int("total_clips", len(published)))
	return nil
}

// advance moves the job to the next stage and persists it so polling
// clients see the stage currently in flight.
func (s *Service) advance(ctx context.Context, job *Job, status Status) error {
	if err := job.TransitionTo(status); err != nil {
		return fmt.Errorf("transition to %s: %w", status, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return fmt.Errorf("save job at %s: %w", status, err)
	}
	return nil
}

// checkpoint bumps progress after a stage completes. Persistence is
// best-effort; the next advance call saves again anyway.
func (s *Service) checkpoint(ctx context.Context, job *Job, progress int) {
	job.UpdateProgress(progress)
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Warn("failed to save progress",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// fail records the stage error verbatim on the job and persists it.
func (s *Service) fail(ctx context.Context, job *Job, logger *slog.Logger, cause error) error {
	logger.Error("job failed",
		slog.String("status", string(job.GetStatus())),
		slog.String("error", cause.Error()),
	)

	if err := job.Fail(cause.Error()); err != nil {
		logger.Error("failed to mark job failed", slog.String("error", err.Error()))
		return cause
	}
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Error("failed to save failed job", slog.String("error", err.Error()))
	}
	return cause
}

// cleanup removes the job's scratch directory. Best-effort: a leftover
// directory costs disk space, not correctness.
func (s *Service) cleanup(jobID string, logger *slog.Logger) {
	dir := filepath.Join(s.tempDir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove scratch directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}
