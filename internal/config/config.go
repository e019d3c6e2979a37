// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrGroqAPIKeyRequired is returned when GROQ_API_KEY is not set.
	ErrGroqAPIKeyRequired = errors.New("config: GROQ_API_KEY is required")
	// ErrR2PublicURLRequired is returned when R2 is configured without a public URL base.
	ErrR2PublicURLRequired = errors.New("config: R2_PUBLIC_URL is required when R2 is configured")
)

// Config holds all configuration for the worker.
type Config struct {
	// Server settings
	Port         int    `env:"PORT, default=8080" json:"port"`
	WorkerAPIKey string `env:"WORKER_API_KEY, default=change-this-in-production" json:"-"` // Masked in JSON

	// AI provider settings
	GroqAPIKey   string `env:"GROQ_API_KEY, required" json:"-"` // Masked in JSON
	GeminiAPIKey string `env:"GEMINI_API_KEY" json:"-"`         // Masked in JSON

	// Download provider settings
	RapidAPIKey string `env:"RAPIDAPI_KEY" json:"-"` // Masked in JSON
	YtDlpPath   string `env:"YTDLP_PATH, default=yt-dlp" json:"ytdlp_path"`

	// Storage settings (Cloudflare R2, S3-compatible)
	R2AccountID       string `env:"R2_ACCOUNT_ID" json:"r2_account_id,omitempty"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	R2Bucket          string `env:"R2_BUCKET_NAME, default=viralklip-videos" json:"r2_bucket"`
	R2PublicURL       string `env:"R2_PUBLIC_URL" json:"r2_public_url,omitempty"`

	// Processing settings
	MaxVideoDurationSec int    `env:"MAX_VIDEO_DURATION, default=3600" json:"max_video_duration_sec"`
	MaxClipDurationSec  int    `env:"MAX_CLIP_DURATION, default=60" json:"max_clip_duration_sec"`
	DefaultClipCount    int    `env:"DEFAULT_CLIP_COUNT, default=10" json:"default_clip_count"`
	TempDir             string `env:"TEMP_DIR, default=/tmp/viralklip" json:"temp_dir"`

	// Job store settings. When JobStorePath is set, jobs are persisted to a
	// SQLite database at that path instead of the in-memory store.
	JobStorePath string `env:"JOB_STORE_PATH" json:"job_store_path,omitempty"`

	// CORS settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// R2Enabled returns true if object storage configuration is provided.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "GROQ_API_KEY") {
			return nil, ErrGroqAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GroqAPIKey == "" {
		return ErrGroqAPIKeyRequired
	}
	if c.R2Enabled() && c.R2PublicURL == "" {
		return ErrR2PublicURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, R2Bucket: %s, R2PublicURL: %s, MaxVideoDuration: %d, MaxClipDuration: %d, DefaultClipCount: %d, TempDir: %s, JobStorePath: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.R2Bucket,
		c.R2PublicURL,
		c.MaxVideoDurationSec,
		c.MaxClipDurationSec,
		c.DefaultClipCount,
		c.TempDir,
		c.JobStorePath,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
