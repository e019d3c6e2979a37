// Package transcribe converts an audio file into a timestamped transcript
// using a speech-to-text provider.
package transcribe

import (
	"context"
	"errors"
)

// ErrTranscriptionFailed is returned when the speech-to-text provider fails.
// Transcription has no fallback provider; this error is fatal to the job.
var ErrTranscriptionFailed = errors.New("transcribe: transcription failed")

// Segment is a single timestamped piece of the transcript.
type Segment struct {
	// Start is the segment start offset in seconds.
	Start float64 `json:"start"`
	// End is the segment end offset in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
}

// Transcript is the full transcription of an audio file.
// It is produced once per job and immutable thereafter.
type Transcript struct {
	// Text is the full transcript text.
	Text string `json:"text"`
	// Segments are ordered by Start ascending.
	Segments []Segment `json:"segments"`
}

// Transcriber defines the interface for speech-to-text providers.
type Transcriber interface {
	// Transcribe sends the audio file at path to the provider and returns
	// the transcript with segment-level timestamps.
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}
