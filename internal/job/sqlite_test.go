package job

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/viralklip/clip-worker/internal/publish"
)

func newTestSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository_SaveAndFind(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()

	job := New("project-1", "user-1")
	job.VideoURL = "https://youtu.be/abcdefghijk"
	job.TargetCount = 5
	job.AspectRatios = []string{"9:16", "1:1"}

	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != job.ID {
		t.Errorf("expected ID %s, got %s", job.ID, saved.ID)
	}
	if saved.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, saved.Status)
	}
	if saved.VideoURL != job.VideoURL {
		t.Errorf("expected video URL %s, got %s", job.VideoURL, saved.VideoURL)
	}
	if saved.TargetCount != 5 {
		t.Errorf("expected target count 5, got %d", saved.TargetCount)
	}
	if len(saved.AspectRatios) != 2 || saved.AspectRatios[0] != "9:16" {
		t.Errorf("expected aspect ratios to round-trip, got %v", saved.AspectRatios)
	}
	if saved.Result != nil {
		t.Error("expected no result on a pending job")
	}
	if !saved.CreatedAt.Equal(job.CreatedAt) {
		t.Errorf("expected CreatedAt %v, got %v", job.CreatedAt, saved.CreatedAt)
	}
	if !saved.StartedAt.IsZero() {
		t.Error("expected zero StartedAt on a pending job")
	}
}

func TestSQLiteRepository_Save_Update(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()

	job := New("p", "u")
	job.AspectRatios = []string{"9:16"}
	_ = repo.Save(ctx, job)

	_ = job.TransitionTo(StatusDownloading)
	job.UpdateProgress(20)
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, _ := repo.FindByID(ctx, job.ID)
	if saved.Status != StatusDownloading {
		t.Errorf("expected status %s, got %s", StatusDownloading, saved.Status)
	}
	if saved.Progress != 20 {
		t.Errorf("expected progress 20, got %d", saved.Progress)
	}
}

func TestSQLiteRepository_ResultRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()

	job := New("p", "u")
	job.AspectRatios = []string{"9:16"}
	job.Status = StatusUploading
	result := &Result{
		Transcript: "full transcript",
		Clips: []publish.PublishedClip{{
			ClipNumber:  1,
			StartTime:   10,
			EndTime:     40,
			Duration:    30,
			AspectRatio: "9:16",
			VideoURL:    "https://cdn.example.com/j/clip_01_9x16.mp4",
			Keywords:    []string{"drama"},
		}},
		TotalClips: 1,
	}
	if err := job.Complete(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Result == nil {
		t.Fatal("expected result to round-trip")
	}
	if saved.Result.Transcript != "full transcript" {
		t.Errorf("expected transcript to round-trip, got %q", saved.Result.Transcript)
	}
	if saved.Result.TotalClips != 1 || len(saved.Result.Clips) != 1 {
		t.Fatalf("expected 1 clip, got %+v", saved.Result)
	}
	if saved.Result.Clips[0].VideoURL != result.Clips[0].VideoURL {
		t.Errorf("expected clip URL to round-trip, got %q", saved.Result.Clips[0].VideoURL)
	}
	if saved.Progress != 100 {
		t.Errorf("expected progress 100, got %d", saved.Progress)
	}
}

func TestSQLiteRepository_FindByID_NotFound(t *testing.T) {
	repo := newTestSQLiteRepository(t)

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()

	job1 := New("p", "u")
	job1.AspectRatios = []string{"9:16"}
	job2 := New("p", "u")
	job2.AspectRatios = []string{"16:9"}
	_ = repo.Save(ctx, job1)
	_ = repo.Save(ctx, job2)

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()

	job := New("p", "u")
	job.AspectRatios = []string{"9:16"}
	_ = repo.Save(ctx, job)

	if err := repo.Delete(ctx, job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, job.ID); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, "nonexistent"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
