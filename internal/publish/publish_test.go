package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralklip/clip-worker/internal/analyze"
	"github.com/viralklip/clip-worker/internal/render"
)

type recordedUpload struct {
	key          string
	contentType  string
	cacheControl string
	body         string
}

type fakeStorage struct {
	uploads []recordedUpload
	failKey string
}

func (f *fakeStorage) Upload(_ context.Context, key string, data io.Reader, contentType, cacheControl string) (string, error) {
	if f.failKey != "" && key == f.failKey {
		return "", errors.New("bucket unavailable")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, recordedUpload{
		key:          key,
		contentType:  contentType,
		cacheControl: cacheControl,
		body:         string(body),
	})
	return "https://cdn.example.com/" + key, nil
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testClip(t *testing.T, dir string, number int, ratio string) render.Clip {
	t.Helper()
	slug := strings.ReplaceAll(ratio, ":", "x")
	base := fmt.Sprintf("clip_%02d_%s", number, slug)
	return render.Clip{
		ClipNumber:    number,
		AspectRatio:   ratio,
		VideoPath:     writeArtifact(t, dir, base+".mp4", "video-"+base),
		ThumbnailPath: writeArtifact(t, dir, base+"_thumb.jpg", "thumb-"+base),
		SubtitlePath:  writeArtifact(t, dir, base+".srt", "srt-"+base),
		Moment: analyze.Moment{
			StartTime:      10,
			EndTime:        40,
			Transcript:     "an unexpected turn of events",
			ViralScore:     8.5,
			Reason:         "strong hook",
			Keywords:       []string{"drama", "twist"},
			HookType:       analyze.HookShock,
			ViewPrediction: 50000,
		},
	}
}

func TestPublish_UploadsAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{}
	publisher := NewPublisher(store, nil)

	clips := []render.Clip{
		testClip(t, dir, 1, "9:16"),
		testClip(t, dir, 1, "16:9"),
	}

	published, err := publisher.Publish(context.Background(), "job-abc", clips)
	require.NoError(t, err)
	require.Len(t, published, 2)
	require.Len(t, store.uploads, 6)

	keys := make([]string, 0, len(store.uploads))
	for _, u := range store.uploads {
		keys = append(keys, u.key)
		assert.Equal(t, "public, max-age=31536000", u.cacheControl)
	}
	assert.Equal(t, []string{
		"job-abc/clip_01_9x16.mp4",
		"job-abc/clip_01_9x16_thumb.jpg",
		"job-abc/clip_01_9x16.srt",
		"job-abc/clip_01_16x9.mp4",
		"job-abc/clip_01_16x9_thumb.jpg",
		"job-abc/clip_01_16x9.srt",
	}, keys)

	assert.Equal(t, "video/mp4", store.uploads[0].contentType)
	assert.Equal(t, "image/jpeg", store.uploads[1].contentType)
	assert.Equal(t, "text/plain", store.uploads[2].contentType)
	assert.Equal(t, "video-clip_01_9x16", store.uploads[0].body)
}

func TestPublish_ResultFields(t *testing.T) {
	dir := t.TempDir()
	publisher := NewPublisher(&fakeStorage{}, nil)

	published, err := publisher.Publish(context.Background(), "job-abc", []render.Clip{testClip(t, dir, 3, "1:1")})
	require.NoError(t, err)
	require.Len(t, published, 1)

	clip := published[0]
	assert.Equal(t, 3, clip.ClipNumber)
	assert.Equal(t, 10.0, clip.StartTime)
	assert.Equal(t, 40.0, clip.EndTime)
	assert.Equal(t, 30.0, clip.Duration)
	assert.Equal(t, "an unexpected turn of events", clip.TranscriptSnippet)
	assert.Equal(t, 8.5, clip.ViralScore)
	assert.Equal(t, "strong hook", clip.ViralReason)
	assert.Equal(t, []string{"drama", "twist"}, clip.Keywords)
	assert.Equal(t, "1:1", clip.AspectRatio)
	assert.Equal(t, "https://cdn.example.com/job-abc/clip_03_1x1.mp4", clip.VideoURL)
	assert.Equal(t, "https://cdn.example.com/job-abc/clip_03_1x1_thumb.jpg", clip.ThumbnailURL)
	assert.Equal(t, "https://cdn.example.com/job-abc/clip_03_1x1.srt", clip.SubtitleFileURL)
	assert.Equal(t, 50000, clip.ViewPrediction)

	// Caption is generated at publish time from the moment.
	assert.Equal(t, render.Caption(testClip(t, dir, 3, "1:1").Moment), clip.CaptionText)
	assert.True(t, strings.HasPrefix(clip.CaptionText, "😱 "))
}

func TestPublish_Deterministic(t *testing.T) {
	dir := t.TempDir()
	publisher := NewPublisher(&fakeStorage{}, nil)
	clips := []render.Clip{testClip(t, dir, 1, "9:16")}

	first, err := publisher.Publish(context.Background(), "job-abc", clips)
	require.NoError(t, err)
	second, err := publisher.Publish(context.Background(), "job-abc", clips)
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-publishing the same clips must yield identical results")
}

func TestPublish_UploadFailureAborts(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{failKey: "job-abc/clip_02_9x16_thumb.jpg"}
	publisher := NewPublisher(store, nil)

	clips := []render.Clip{
		testClip(t, dir, 1, "9:16"),
		testClip(t, dir, 2, "9:16"),
	}

	published, err := publisher.Publish(context.Background(), "job-abc", clips)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Contains(t, err.Error(), "clip 2")
	assert.Nil(t, published)

	// First clip uploaded fully, second clip stopped at the failed thumbnail.
	require.Len(t, store.uploads, 4)
	assert.Equal(t, "job-abc/clip_02_9x16.mp4", store.uploads[3].key)
}

func TestPublish_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	publisher := NewPublisher(&fakeStorage{}, nil)

	clip := testClip(t, dir, 1, "9:16")
	clip.VideoPath = filepath.Join(dir, "missing.mp4")

	_, err := publisher.Publish(context.Background(), "job-abc", []render.Clip{clip})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestPublish_NoClips(t *testing.T) {
	publisher := NewPublisher(&fakeStorage{}, nil)

	published, err := publisher.Publish(context.Background(), "job-abc", nil)
	require.NoError(t, err)
	assert.Empty(t, published)
}
