// Package bootstrap provides dependency initialization for the clip worker.
package bootstrap

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/viralklip/clip-worker/internal/analyze"
	"github.com/viralklip/clip-worker/internal/config"
	"github.com/viralklip/clip-worker/internal/fetch"
	"github.com/viralklip/clip-worker/internal/job"
	"github.com/viralklip/clip-worker/internal/media"
	"github.com/viralklip/clip-worker/internal/publish"
	"github.com/viralklip/clip-worker/internal/render"
	"github.com/viralklip/clip-worker/internal/storage"
	"github.com/viralklip/clip-worker/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ClipService *job.Service

	jobStore *job.SQLiteRepository
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	if d.jobStore != nil {
		return d.jobStore.Close()
	}
	return nil
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	processor := media.NewFFmpegProcessor("")

	fetcher, err := initFetcher(cfg, processor, logger)
	if err != nil {
		return nil, err
	}

	transcriber, err := transcribe.NewGroqTranscriber(cfg.GroqAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create transcriber: %w", err)
	}

	analyzer, err := initAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}

	renderer := render.NewRenderer(processor, logger)
	publisher := publish.NewPublisher(store, logger)

	deps := &Dependencies{}

	var repo job.Repository
	if cfg.JobStorePath != "" {
		sqliteRepo, err := job.NewSQLiteRepository(cfg.JobStorePath)
		if err != nil {
			return nil, fmt.Errorf("create job store: %w", err)
		}
		logger.Info("sqlite job store configured", slog.String("path", cfg.JobStorePath))
		deps.jobStore = sqliteRepo
		repo = sqliteRepo
	} else {
		logger.Info("in-memory job store configured")
		repo = job.NewMemoryRepository()
	}

	deps.ClipService = job.NewService(
		repo,
		fetcher,
		transcriber,
		analyzer,
		renderer,
		publisher,
		cfg.TempDir,
		logger,
	)

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.R2Enabled() {
		r2Store, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
			PublicBaseURL:   cfg.R2PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create R2 storage: %w", err)
		}
		logger.Info("R2 storage configured",
			slog.String("bucket", cfg.R2Bucket),
			slog.String("public_url", cfg.R2PublicURL),
		)
		return r2Store, nil
	}

	localStore, err := storage.NewLocalStorage(filepath.Join(cfg.TempDir, "published"), "")
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initFetcher builds the ordered download provider chain. The YTStream API
// provider goes first when a RapidAPI key is configured; yt-dlp is always
// available as the last resort.
func initFetcher(cfg *config.Config, processor media.Processor, logger *slog.Logger) (*fetch.Fetcher, error) {
	var providers []fetch.Provider

	if cfg.RapidAPIKey != "" {
		ytstream, err := fetch.NewYTStreamProvider(cfg.RapidAPIKey, cfg.MaxVideoDurationSec, processor)
		if err != nil {
			return nil, fmt.Errorf("create ytstream provider: %w", err)
		}
		providers = append(providers, ytstream)
	}
	providers = append(providers, fetch.NewYtDlpProvider(cfg.YtDlpPath, cfg.MaxVideoDurationSec, processor))

	logger.Info("download providers configured", slog.Int("count", len(providers)))
	return fetch.NewFetcher(providers, processor, cfg.TempDir, logger), nil
}

// initAnalyzer builds the LLM provider chain: Groq first, Gemini as the
// fallback when a key is configured.
func initAnalyzer(cfg *config.Config, logger *slog.Logger) (*analyze.Analyzer, error) {
	groq, err := analyze.NewGroqProvider(cfg.GroqAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create groq provider: %w", err)
	}
	providers := []analyze.Provider{groq}

	if cfg.GeminiAPIKey != "" {
		gemini, err := analyze.NewGeminiProvider(cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}

	logger.Info("analysis providers configured", slog.Int("count", len(providers)))
	return analyze.NewAnalyzer(providers, float64(cfg.MaxClipDurationSec), logger), nil
}
