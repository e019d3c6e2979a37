package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on the local filesystem. It exists for
// development and tests where no object store is configured; "public" URLs
// are file paths under the root directory.
type LocalStorage struct {
	rootDir string
	baseURL string
}

// NewLocalStorage creates a LocalStorage rooted at rootDir.
// The directory is created if it doesn't exist.
func NewLocalStorage(rootDir, baseURL string) (*LocalStorage, error) {
	if rootDir == "" {
		rootDir = filepath.Join(os.TempDir(), "viralklip-published")
	}
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "file://" + rootDir
	}
	return &LocalStorage{
		rootDir: rootDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload writes the object to disk under the key's relative path.
// Content type and cache policy are metadata-only concerns and ignored here.
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, _, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - key is built from internal identifiers
	if err != nil {
		return "", fmt.Errorf("create object file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write object file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object file: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
