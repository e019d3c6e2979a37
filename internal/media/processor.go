// Package media provides video processing capabilities backed by the ffmpeg CLI.
// The Processor interface acts as a port so orchestration logic can be tested
// with a stub encoder instead of real media tooling.
package media

import "context"

// Processor defines the media operations the pipeline depends on.
type Processor interface {
	// ExtractClip cuts the [startSec, startSec+durationSec) window from src,
	// applies the scale-then-center-crop transform for the aspect ratio, and
	// writes a web-ready MP4 to dst.
	ExtractClip(ctx context.Context, src, dst string, startSec, durationSec float64, aspectRatio string) error

	// Thumbnail writes a single still frame taken 1 second into src, scaled
	// to a fixed width, to dst.
	Thumbnail(ctx context.Context, src, dst string) error

	// ExtractAudio extracts the audio track of src into an MP3 at dst.
	ExtractAudio(ctx context.Context, src, dst string) error

	// ProbeDuration returns the duration of a media file in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
