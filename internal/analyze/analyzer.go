// Package analyze asks an LLM provider to select and score viral moments
// from a transcript. The primary provider is tried first; any failure
// triggers exactly one retry against the fallback provider.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viralklip/clip-worker/internal/transcribe"
)

// Static errors for analysis.
var (
	// ErrAnalysisFailed is returned when every configured provider fails.
	ErrAnalysisFailed = errors.New("analyze: analysis failed")
	// ErrNoProviders is returned when the analyzer has no providers configured.
	ErrNoProviders = errors.New("analyze: no providers configured")
)

// promptSegmentLimit bounds the number of transcript segments embedded in the
// prompt to control token usage on long videos.
const promptSegmentLimit = 50

// Provider defines the interface for LLM completion providers.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Complete sends the prompt and returns the model's raw text output.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer selects viral moments from a transcript using an ordered list of
// LLM providers attempted in sequence until one succeeds.
type Analyzer struct {
	providers       []Provider
	maxClipDuration float64
	logger          *slog.Logger
}

// NewAnalyzer creates an Analyzer over the given provider chain.
// maxClipDuration is the clip duration ceiling in seconds used to clamp
// moment end times.
func NewAnalyzer(providers []Provider, maxClipDuration float64, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		providers:       providers,
		maxClipDuration: maxClipDuration,
		logger:          logger,
	}
}

// Analyze returns at most targetCount moments ordered as the provider
// returned them (the prompt requests viral_score descending; the ordering is
// trusted, not re-sorted locally). Malformed elements are dropped before the
// truncation to targetCount.
func (a *Analyzer) Analyze(ctx context.Context, tr transcribe.Transcript, targetCount int) ([]Moment, error) {
	if len(a.providers) == 0 {
		return nil, ErrNoProviders
	}

	prompt, err := buildPrompt(tr, targetCount)
	if err != nil {
		return nil, fmt.Errorf("%w: build prompt: %w", ErrAnalysisFailed, err)
	}

	var lastErr error
	for _, p := range a.providers {
		a.logger.Info("requesting viral moment analysis",
			slog.String("provider", p.Name()),
			slog.Int("target_count", targetCount),
		)

		text, err := p.Complete(ctx, prompt)
		if err != nil {
			a.logger.Warn("analysis provider failed",
				slog.String("provider", p.Name()),
				slog.String("error", err.Error()),
			)
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			continue
		}

		moments, err := a.parseMoments(text, targetCount)
		if err != nil {
			a.logger.Warn("analysis response unparseable",
				slog.String("provider", p.Name()),
				slog.String("error", err.Error()),
			)
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			continue
		}

		a.logger.Info("analysis complete",
			slog.String("provider", p.Name()),
			slog.Int("moments", len(moments)),
		)
		return moments, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, lastErr)
}

// parseMoments extracts the JSON array from the model's free-text output,
// normalizes each element, and truncates to targetCount.
func (a *Analyzer) parseMoments(text string, targetCount int) ([]Moment, error) {
	body := stripCodeFence(text)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, fmt.Errorf("decode moments array: %w", err)
	}

	moments := make([]Moment, 0, len(elems))
	for i, raw := range elems {
		m, ok := normalizeMoment(raw, a.maxClipDuration)
		if !ok {
			a.logger.Warn("skipping malformed moment", slog.Int("index", i))
			continue
		}
		moments = append(moments, m)
	}

	if targetCount > 0 && len(moments) > targetCount {
		moments = moments[:targetCount]
	}
	return moments, nil
}

// buildPrompt renders the analysis prompt embedding the full transcript text
// and a bounded prefix of its segments.
func buildPrompt(tr transcribe.Transcript, targetCount int) (string, error) {
	segments := tr.Segments
	if len(segments) > promptSegmentLimit {
		segments = segments[:promptSegmentLimit]
	}
	segJSON, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this video transcript and identify the TOP %d most viral moments for TikTok/Reels.\n\n", targetCount)
	fmt.Fprintf(&b, "TRANSCRIPT:\n%s\n\n", tr.Text)
	fmt.Fprintf(&b, "TRANSCRIPT SEGMENTS (with timestamps):\n%s\n\n", segJSON)
	b.WriteString(`For each viral moment, provide:
1. start_time (in seconds)
2. end_time (in seconds) - max 60 seconds duration
3. transcript (exact text from that moment)
4. viral_score (0-10, how viral this moment is)
5. reason (why this moment is viral)
6. keywords (3-5 relevant keywords)
7. hook_type (question/shock/controversy/emotion/humor/tutorial/story)
8. view_prediction (estimated views: 1000-1000000)

CRITERIA FOR VIRAL MOMENTS:
- Strong hooks (questions, shocking statements, controversy)
- Emotional peaks (excitement, surprise, anger, joy)
- Valuable insights or tips
- Relatable situations
- Cliffhangers or plot twists
- Quotable one-liners

`)
	fmt.Fprintf(&b, "Return ONLY a JSON array of %d moments, ordered by viral_score (highest first).\n", targetCount)
	b.WriteString(`Format: [{"start_time": 10.5, "end_time": 45.2, "transcript": "...", "viral_score": 9.5, "reason": "...", "keywords": ["...", "..."], "hook_type": "...", "view_prediction": 50000}, ...]`)

	return b.String(), nil
}

// stripCodeFence removes the first markdown code fence wrapping the payload,
// preferring a json-tagged fence over a plain one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	return s
}
