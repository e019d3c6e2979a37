// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID.
// IDs are opaque to callers; the boundary layer only echoes them back.
func Generate() string {
	return uuid.NewString()
}
