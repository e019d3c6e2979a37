package analyze

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralklip/clip-worker/internal/transcribe"
)

// stubProvider returns a canned response or error.
type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTranscript() transcribe.Transcript {
	return transcribe.Transcript{
		Text: "welcome back everyone today we reveal the secret",
		Segments: []transcribe.Segment{
			{Start: 0, End: 5, Text: "welcome back everyone"},
			{Start: 5, End: 12, Text: "today we reveal the secret"},
		},
	}
}

const validResponse = `[
  {"start_time": 10.5, "end_time": 45.2, "transcript": "the secret is out", "viral_score": 9.5, "reason": "big reveal", "keywords": ["secret", "reveal"], "hook_type": "shock", "view_prediction": 50000},
  {"start_time": 60, "end_time": 80, "transcript": "how did this happen", "viral_score": 8, "reason": "question hook", "keywords": ["question"], "hook_type": "question", "view_prediction": 20000}
]`

func TestAnalyzer_Analyze_PrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "primary", text: validResponse}
	fallback := &stubProvider{name: "fallback", text: validResponse}
	a := NewAnalyzer([]Provider{primary, fallback}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Len(t, moments, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not be called when primary succeeds")

	assert.Equal(t, 10.5, moments[0].StartTime)
	assert.Equal(t, 45.2, moments[0].EndTime)
	assert.Equal(t, "shock", moments[0].HookType)
	assert.Equal(t, 50000, moments[0].ViewPrediction)
}

func TestAnalyzer_Analyze_FallsBackOnPrimaryError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("rate limited")}
	fallback := &stubProvider{name: "fallback", text: validResponse}
	a := NewAnalyzer([]Provider{primary, fallback}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Len(t, moments, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestAnalyzer_Analyze_BothFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("primary outage")}
	fallback := &stubProvider{name: "fallback", err: errors.New("fallback outage")}
	a := NewAnalyzer([]Provider{primary, fallback}, 60, testLogger())

	_, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "fallback outage", "error should wrap the secondary failure")
}

func TestAnalyzer_Analyze_StripsJSONFence(t *testing.T) {
	fenced := "Here are the moments:\n```json\n" + validResponse + "\n```\nEnjoy!"
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: fenced}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Len(t, moments, 2)
}

func TestAnalyzer_Analyze_StripsPlainFence(t *testing.T) {
	fenced := "```\n" + validResponse + "\n```"
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: fenced}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Len(t, moments, 2)
}

func TestAnalyzer_Analyze_MalformedJSONFailsProvider(t *testing.T) {
	bad := &stubProvider{name: "bad", text: "sorry, I cannot help with that"}
	good := &stubProvider{name: "good", text: validResponse}
	a := NewAnalyzer([]Provider{bad, good}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err, "unparseable output should trigger the fallback provider")
	assert.Len(t, moments, 2)
}

func TestAnalyzer_Analyze_SkipsMalformedElements(t *testing.T) {
	// Five elements; one lacks start_time entirely.
	response := `[
	  {"start_time": 0, "end_time": 10, "transcript": "a", "viral_score": 9, "keywords": [], "hook_type": "story", "view_prediction": 1000},
	  {"end_time": 20, "transcript": "missing start", "viral_score": 8},
	  {"start_time": 30, "end_time": 40, "transcript": "c", "viral_score": 7, "keywords": [], "hook_type": "humor", "view_prediction": 3000},
	  {"start_time": 50, "end_time": 55, "transcript": "d", "viral_score": 6, "keywords": [], "hook_type": "story", "view_prediction": 4000},
	  {"start_time": 60, "end_time": 70, "transcript": "e", "viral_score": 5, "keywords": [], "hook_type": "story", "view_prediction": 5000}
	]`
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: response}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Len(t, moments, 4, "malformed element should be dropped, not fatal")
}

func TestAnalyzer_Analyze_ClampsEndTime(t *testing.T) {
	response := `[{"start_time": 10, "end_time": 500, "transcript": "long", "viral_score": 9}]`
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: response}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	require.Len(t, moments, 1)
	assert.Equal(t, 70.0, moments[0].EndTime)
	assert.LessOrEqual(t, moments[0].Duration(), 60.0)
}

func TestAnalyzer_Analyze_DefaultsOptionalFields(t *testing.T) {
	response := `[{"start_time": 0, "end_time": 15, "transcript": "bare"}]`
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: response}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	require.Len(t, moments, 1)
	assert.Equal(t, HookStory, moments[0].HookType)
	assert.Equal(t, float64(defaultViralScore), moments[0].ViralScore)
	assert.Equal(t, defaultViewPrediction, moments[0].ViewPrediction)
	assert.NotNil(t, moments[0].Keywords)
}

func TestAnalyzer_Analyze_TruncatesAfterDropping(t *testing.T) {
	// Three valid, one malformed, target 2: drop first, then truncate.
	response := `[
	  {"start_time": 0, "end_time": 10, "transcript": "a", "viral_score": 9},
	  {"transcript": "broken"},
	  {"start_time": 20, "end_time": 30, "transcript": "b", "viral_score": 8},
	  {"start_time": 40, "end_time": 50, "transcript": "c", "viral_score": 7}
	]`
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: response}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 2)
	require.NoError(t, err)
	require.Len(t, moments, 2)
	assert.Equal(t, "a", moments[0].Transcript)
	assert.Equal(t, "b", moments[1].Transcript)
}

func TestAnalyzer_Analyze_DropsInvertedTimes(t *testing.T) {
	response := `[{"start_time": 50, "end_time": 40, "transcript": "backwards", "viral_score": 9}]`
	a := NewAnalyzer([]Provider{&stubProvider{name: "p", text: response}}, 60, testLogger())

	moments, err := a.Analyze(context.Background(), testTranscript(), 10)
	require.NoError(t, err)
	assert.Empty(t, moments)
}

func TestAnalyzer_Analyze_NoProviders(t *testing.T) {
	a := NewAnalyzer(nil, 60, testLogger())
	_, err := a.Analyze(context.Background(), testTranscript(), 10)
	assert.ErrorIs(t, err, ErrNoProviders)
}
