// Package storage provides object storage capabilities for published clip
// artifacts. It defines the Storage interface (port) and implementations for
// local disk and S3-compatible object stores.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for publishing artifacts to object storage.
// Keys are immutable once written; implementations should serve long-lived
// cache headers.
type Storage interface {
	// Upload writes data under the given key with the given content type and
	// cache policy, and returns the public URL of the object.
	Upload(ctx context.Context, key string, data io.Reader, contentType, cacheControl string) (url string, err error)
}
