// Package job provides the Job aggregate for video clipping jobs.
// It includes the Job entity with its pipeline state machine, repository
// interfaces for persistence, and the orchestrating service.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/viralklip/clip-worker/internal/job/id"
	"github.com/viralklip/clip-worker/internal/publish"
)

// Status represents the current state of a Job. States mirror the pipeline
// stages so a polling client can show meaningful progress.
type Status string

const (
	// StatusPending indicates the job was accepted but processing has not started.
	StatusPending Status = "pending"
	// StatusDownloading indicates the source video is being fetched.
	StatusDownloading Status = "downloading"
	// StatusTranscribing indicates the audio is being transcribed.
	StatusTranscribing Status = "transcribing"
	// StatusAnalyzing indicates viral moments are being selected.
	StatusAnalyzing Status = "analyzing"
	// StatusClipping indicates clips are being rendered.
	StatusClipping Status = "clipping"
	// StatusUploading indicates rendered clips are being published.
	StatusUploading Status = "uploading"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a stage raised a fatal error.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. The pipeline
// is strictly sequential; failed is reachable from any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusPending:      {StatusDownloading, StatusFailed},
	StatusDownloading:  {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:    {StatusClipping, StatusFailed},
	StatusClipping:     {StatusUploading, StatusFailed},
	StatusUploading:    {StatusCompleted, StatusFailed},
	StatusCompleted:    {},
	StatusFailed:       {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Result is the structured payload of a completed job.
type Result struct {
	// Transcript is the full transcript text of the source video.
	Transcript string `json:"transcript"`
	// Clips are the published clips, one per (moment, aspect ratio) pair.
	Clips []publish.PublishedClip `json:"clips"`
	// TotalClips equals len(Clips); kept explicit for the API contract.
	TotalClips int `json:"total_clips"`
}

// Job represents a video clipping job aggregate. It contains all state
// related to turning one source video into published clips.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100), never decreasing.
	Progress int
	// ProjectID is an opaque caller-supplied project reference.
	ProjectID string
	// UserID is an opaque caller-supplied user reference.
	UserID string
	// VideoURL is the source video URL.
	VideoURL string
	// TargetCount is the requested number of moments to extract.
	TargetCount int
	// AspectRatios are the requested output ratios.
	AspectRatios []string
	// Result is set only when the job completes successfully.
	Result *Result
	// Error contains the stage error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial pending status.
func New(projectID, userID string) *Job {
	return NewWithID(id.Generate(), projectID, userID)
}

// NewWithID creates a new Job with the specified ID and initial pending
// status. Useful for testing or when the ID is externally generated.
func NewWithID(jobID, projectID, userID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		ProjectID: projectID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusDownloading:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Complete transitions the job to completed and attaches the result.
// Returns ErrInvalidTransition if the transition is not allowed; the
// result is not attached in that case.
func (j *Job) Complete(result *Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, StatusCompleted) {
		return ErrInvalidTransition
	}

	j.Status = StatusCompleted
	j.Result = result
	j.Progress = 100
	j.UpdatedAt = time.Now()
	j.CompletedAt = j.UpdatedAt
	return nil
}

// Fail transitions the job to failed with an error message. The transition
// is valid from any non-terminal state; failing a terminal job returns
// ErrInvalidTransition.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, StatusFailed) {
		return ErrInvalidTransition
	}

	j.Status = StatusFailed
	j.Error = errMsg
	j.UpdatedAt = time.Now()
	j.CompletedAt = j.UpdatedAt
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetProgress returns the current progress percentage (thread-safe).
func (j *Job) GetProgress() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

// UpdateProgress sets the progress percentage. Values are clamped to 0-100
// and progress never moves backwards.
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress > 100 {
		progress = 100
	}
	if progress <= j.Progress {
		return
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ratios := make([]string, len(j.AspectRatios))
	copy(ratios, j.AspectRatios)

	var result *Result
	if j.Result != nil {
		clips := make([]publish.PublishedClip, len(j.Result.Clips))
		copy(clips, j.Result.Clips)
		result = &Result{
			Transcript: j.Result.Transcript,
			Clips:      clips,
			TotalClips: j.Result.TotalClips,
		}
	}

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		ProjectID:    j.ProjectID,
		UserID:       j.UserID,
		VideoURL:     j.VideoURL,
		TargetCount:  j.TargetCount,
		AspectRatios: ratios,
		Result:       result,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
