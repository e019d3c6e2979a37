package render

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/viralklip/clip-worker/internal/analyze"
)

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ExtractClip(ctx context.Context, src, dst string, startSec, durationSec float64, aspectRatio string) error {
	args := m.Called(ctx, src, dst, startSec, durationSec, aspectRatio)
	return args.Error(0)
}

func (m *mockProcessor) Thumbnail(ctx context.Context, src, dst string) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

func (m *mockProcessor) ExtractAudio(ctx context.Context, src, dst string) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

func (m *mockProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMoments() []analyze.Moment {
	return []analyze.Moment{
		{StartTime: 10, EndTime: 40, Transcript: "first moment", ViralScore: 9, Keywords: []string{"one"}, HookType: analyze.HookStory},
		{StartTime: 60, EndTime: 90, Transcript: "second moment", ViralScore: 8, Keywords: []string{"two"}, HookType: analyze.HookShock},
	}
}

func TestRenderer_Render_AllPairs(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")

	processor := &mockProcessor{}
	processor.On("ExtractClip", mock.Anything, videoPath, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := NewRenderer(processor, testLogger())
	clips, err := r.Render(context.Background(), videoPath, testMoments(), []string{"9:16", "1:1"})
	require.NoError(t, err)

	require.Len(t, clips, 4, "2 moments x 2 ratios")
	assert.Equal(t, 1, clips[0].ClipNumber)
	assert.Equal(t, "9:16", clips[0].AspectRatio)
	assert.Equal(t, filepath.Join(dir, "clips", "clip_01_9x16.mp4"), clips[0].VideoPath)
	assert.Equal(t, filepath.Join(dir, "clips", "clip_01_9x16_thumb.jpg"), clips[0].ThumbnailPath)
	assert.Equal(t, filepath.Join(dir, "clips", "clip_01_9x16.srt"), clips[0].SubtitlePath)
	assert.Equal(t, 2, clips[3].ClipNumber)
	assert.Equal(t, "1:1", clips[3].AspectRatio)

	// Subtitle files are written by the renderer itself.
	content, err := os.ReadFile(clips[0].SubtitlePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "first moment")

	processor.AssertNumberOfCalls(t, "ExtractClip", 4)
	processor.AssertNumberOfCalls(t, "Thumbnail", 4)
}

func TestRenderer_Render_EncoderFailureAbortsBatch(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")

	processor := &mockProcessor{}
	processor.On("ExtractClip", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "9:16").Return(nil)
	processor.On("ExtractClip", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "1:1").Return(errors.New("encoder crashed"))
	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := NewRenderer(processor, testLogger())
	_, err := r.Render(context.Background(), videoPath, testMoments(), []string{"9:16", "1:1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "encoder crashed")
}

func TestRenderer_Render_PassesMomentWindow(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")

	processor := &mockProcessor{}
	processor.On("ExtractClip", mock.Anything, videoPath, mock.Anything, 10.0, 30.0, "9:16").Return(nil)
	processor.On("Thumbnail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := NewRenderer(processor, testLogger())
	moments := []analyze.Moment{{StartTime: 10, EndTime: 40, Transcript: "m"}}
	_, err := r.Render(context.Background(), videoPath, moments, []string{"9:16"})
	require.NoError(t, err)
	processor.AssertExpectations(t)
}

func TestRatioSlug(t *testing.T) {
	assert.Equal(t, "9x16", ratioSlug("9:16"))
	assert.Equal(t, "16x9", ratioSlug("16:9"))
	assert.Equal(t, "1x1", ratioSlug("1:1"))
}

func TestWriteSubtitleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, writeSubtitleFile(path, "hello there", 75.5))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:01:15,500\nhello there\n", string(content))
}

func TestCaption_TemplateByHookType(t *testing.T) {
	keywords := []string{"go", "coding", "tips"}

	question := analyze.Moment{Transcript: "why does this work?", HookType: analyze.HookQuestion, Keywords: keywords}
	got := Caption(question)
	assert.True(t, strings.HasPrefix(got, "❓ why does this work?"))
	assert.Contains(t, got, "#go #coding #tips")

	shock := analyze.Moment{Transcript: strings.Repeat("a", 200), HookType: analyze.HookShock, Keywords: keywords}
	got = Caption(shock)
	assert.True(t, strings.HasPrefix(got, "😱 "))
	assert.Contains(t, got, strings.Repeat("a", 150)+"...")

	story := analyze.Moment{Transcript: strings.Repeat("b", 200), HookType: analyze.HookStory, Keywords: keywords}
	got = Caption(story)
	assert.True(t, strings.HasPrefix(got, "🔥 "))
	assert.Contains(t, got, strings.Repeat("b", 100)+"...")
}

func TestCaption_Deterministic(t *testing.T) {
	m := analyze.Moment{Transcript: "same in same out", HookType: analyze.HookHumor, Keywords: []string{"humor"}}
	assert.Equal(t, Caption(m), Caption(m))
}

func TestCaption_NoKeywords(t *testing.T) {
	m := analyze.Moment{Transcript: "no tags", HookType: analyze.HookStory}
	got := Caption(m)
	assert.NotContains(t, got, "#")
}
