package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/viralklip/clip-worker/internal/job"
)

const serviceVersion = "1.0.0"

// Handlers contains the HTTP handlers for the worker API.
type Handlers struct {
	service            *job.Service
	validator          *validator.Validate
	logger             *slog.Logger
	defaultClipCount   int
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, Process only creates the job and returns immediately
// without running the pipeline. Useful for tests.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaultClipCount sets the target_count applied when a request omits it.
func WithDefaultClipCount(n int) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.defaultClipCount = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		defaultClipCount:   10,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root handles GET / requests.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Service: "ViralKlip Worker",
		Version: serviceVersion,
		Status:  "running",
	})
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// Process handles POST /process requests. The job is created synchronously
// and the pipeline runs in the background; callers poll GET /status/{id}.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	req.applyDefaults(h.defaultClipCount)

	created, err := h.service.CreateJob(r.Context(), job.CreateInput{
		VideoURL:     req.VideoURL,
		ProjectID:    req.ProjectID,
		UserID:       req.UserID,
		TargetCount:  req.TargetCount,
		AspectRatios: req.AspectRatios,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Run the pipeline with a detached context so it is not cancelled
	// when the request ends.
	if h.enableAsyncProcess {
		go func(ctx context.Context, j *job.Job) {
			if processErr := h.service.Process(ctx, j); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", j.ID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created)
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.String("project_id", req.ProjectID),
	)

	writeJSON(w, http.StatusAccepted, JobCreatedResponse{
		JobID:   created.ID,
		Status:  string(created.Status),
		Message: "Job created successfully",
	})
}

// Status handles GET /status/{id} requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := StatusResponse{
		ID:        found.ID,
		Status:    string(found.Status),
		Progress:  found.Progress,
		ProjectID: found.ProjectID,
		UserID:    found.UserID,
		Error:     found.Error,
	}
	if !found.CreatedAt.IsZero() {
		createdAt := found.CreatedAt
		resp.CreatedAt = &createdAt
	}
	if found.Status == job.StatusCompleted {
		resp.Result = found.Result
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
