// Package server provides the HTTP surface of the clip worker.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/viralklip/clip-worker/internal/job"
)

// ProcessRequest is the HTTP request body for starting a clipping job.
type ProcessRequest struct {
	// VideoURL is a YouTube URL or direct video URL.
	VideoURL string `json:"video_url" validate:"required,url"`
	// ProjectID is an opaque project reference for the caller's bookkeeping.
	ProjectID string `json:"project_id" validate:"required"`
	// UserID is an opaque user reference for the caller's bookkeeping.
	UserID string `json:"user_id" validate:"required"`
	// TargetCount is the number of clips to generate. Defaults to the
	// configured clip count when omitted.
	TargetCount int `json:"target_count" validate:"omitempty,min=1,max=50"`
	// AspectRatios are the requested output ratios. Defaults to
	// ["9:16", "16:9", "1:1"] when omitted.
	AspectRatios []string `json:"aspect_ratios" validate:"omitempty,min=1,dive,oneof=9:16 16:9 1:1 4:5"`
}

// applyDefaults fills in the optional request fields.
func (r *ProcessRequest) applyDefaults(defaultClipCount int) {
	if r.TargetCount == 0 {
		r.TargetCount = defaultClipCount
	}
	if len(r.AspectRatios) == 0 {
		r.AspectRatios = []string{"9:16", "16:9", "1:1"}
	}
}

// JobCreatedResponse is the HTTP response after creating a job.
type JobCreatedResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"job_id"`
	// Status is the initial job status.
	Status string `json:"status"`
	// Message is a human-readable confirmation.
	Message string `json:"message"`
}

// StatusResponse is the HTTP response for polling job status.
type StatusResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// ProjectID echoes the request's project reference.
	ProjectID string `json:"project_id"`
	// UserID echoes the request's user reference.
	UserID string `json:"user_id"`
	// CreatedAt is when the job was created.
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// Result is set only once the job completes.
	Result *job.Result `json:"result,omitempty"`
	// Error contains the failure message if the job failed.
	Error string `json:"error,omitempty"`
}

// RootResponse identifies the service.
type RootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
