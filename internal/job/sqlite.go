package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	progress      INTEGER NOT NULL,
	project_id    TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	video_url     TEXT NOT NULL,
	target_count  INTEGER NOT NULL,
	aspect_ratios TEXT NOT NULL,
	result        TEXT,
	error         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	started_at    INTEGER NOT NULL,
	completed_at  INTEGER NOT NULL
);
`

// SQLiteRepository is a durable implementation of Repository backed by a
// single SQLite database file. Job results and aspect ratios are stored as
// JSON columns; the row layout otherwise mirrors the aggregate.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and ensures
// the schema exists.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	// A single writer keeps SQLite happy under concurrent job updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Save persists a job, inserting or replacing the row for its ID.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	j := job.Clone()

	ratios, err := json.Marshal(j.AspectRatios)
	if err != nil {
		return fmt.Errorf("encode aspect ratios: %w", err)
	}

	var result sql.NullString
	if j.Result != nil {
		encoded, err := json.Marshal(j.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, progress, project_id, user_id, video_url,
			target_count, aspect_ratios, result, error,
			created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		j.ID, string(j.Status), j.Progress, j.ProjectID, j.UserID, j.VideoURL,
		j.TargetCount, string(ratios), result, j.Error,
		timeToNanos(j.CreatedAt), timeToNanos(j.UpdatedAt),
		timeToNanos(j.StartedAt), timeToNanos(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, progress, project_id, user_id, video_url,
			target_count, aspect_ratios, result, error,
			created_at, updated_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return job, nil
}

// List returns all jobs ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, progress, project_id, user_id, video_url,
			target_count, aspect_ratios, result, error,
			created_at, updated_at, started_at, completed_at
		FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("load job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job from storage.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j         Job
		status    string
		ratios    string
		result    sql.NullString
		createdAt int64
		updatedAt int64
		startedAt int64
		doneAt    int64
	)
	err := row.Scan(&j.ID, &status, &j.Progress, &j.ProjectID, &j.UserID, &j.VideoURL,
		&j.TargetCount, &ratios, &result, &j.Error,
		&createdAt, &updatedAt, &startedAt, &doneAt)
	if err != nil {
		return nil, err
	}

	j.Status = Status(status)
	if err := json.Unmarshal([]byte(ratios), &j.AspectRatios); err != nil {
		return nil, fmt.Errorf("decode aspect ratios: %w", err)
	}
	if result.Valid {
		var r Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		j.Result = &r
	}
	j.CreatedAt = nanosToTime(createdAt)
	j.UpdatedAt = nanosToTime(updatedAt)
	j.StartedAt = nanosToTime(startedAt)
	j.CompletedAt = nanosToTime(doneAt)
	return &j, nil
}

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
