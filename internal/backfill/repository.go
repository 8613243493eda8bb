package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/fortuna/diamond/internal/store"
)

const jobColumns = `job_id, job_type, season, start_date, end_date, game_pks, dry_run,
	status, status_message, progress_current, progress_total, games_ready, games_failed,
	last_error, retry_count, created_at, updated_at, started_at, completed_at`

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repository handles persistence for normalization jobs and events.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a new job row and returns the stored record.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.GamePKs == nil {
		job.GamePKs = []int64{}
	}

	query, args, err := psql.Insert("normalize_jobs").
		Columns("job_id", "job_type", "season", "start_date", "end_date", "game_pks", "dry_run",
			"status", "status_message", "progress_current", "progress_total").
		Values(job.JobID, job.JobType, job.Season, job.StartDate, job.EndDate, job.GamePKs, job.DryRun,
			job.Status, job.StatusMessage, job.ProgressCurrent, job.ProgressTotal).
		Suffix("RETURNING " + jobColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job insert: %w", err)
	}

	stored, err := scanJob(r.db.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return stored, nil
}

// UpdateStatus updates status, message and optional error.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	update := psql.Update("normalize_jobs").
		Set("status", string(status)).
		Set("status_message", message).
		Set("last_error", errText).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"job_id": jobID})
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		update = update.Set("completed_at", squirrel.Expr("NOW()"))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// UpdateProgress updates the progress counters, game tallies and message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total, ready, failed int, message string) error {
	query, args, err := psql.Update("normalize_jobs").
		Set("progress_current", current).
		Set("progress_total", total).
		Set("games_ready", ready).
		Set("games_failed", failed).
		Set("status_message", message).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"job_id": jobID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build progress update: %w", err)
	}
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// Event is one log entry for a job.
type Event struct {
	Type    string
	GamePK  int64
	Reason  string
	Message string
	Current *int
	Total   *int
}

// AppendEvent stores a log entry for a job.
func (r *Repository) AppendEvent(ctx context.Context, jobID string, ev Event) error {
	var gamePK sql.NullInt64
	if ev.GamePK != 0 {
		gamePK = sql.NullInt64{Int64: ev.GamePK, Valid: true}
	}
	var reason sql.NullString
	if ev.Reason != "" {
		reason = sql.NullString{String: ev.Reason, Valid: true}
	}
	var current, total interface{}
	if ev.Current != nil {
		current = *ev.Current
	}
	if ev.Total != nil {
		total = *ev.Total
	}

	query, args, err := psql.Insert("normalize_job_events").
		Columns("job_id", "event_type", "gamepk", "reason", "message", "progress_current", "progress_total").
		Values(jobID, ev.Type, gamePK, reason, ev.Message, current, total).
		ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

// ResetStuckJobs moves running jobs back to queued (used during service restarts).
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE normalize_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			retry_count = retry_count + 1,
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the next queued job.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM normalize_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE normalize_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE normalize_jobs.job_id = next_job.job_id
		RETURNING normalize_jobs.job_id, normalize_jobs.job_type, normalize_jobs.season,
			normalize_jobs.start_date, normalize_jobs.end_date, normalize_jobs.game_pks, normalize_jobs.dry_run,
			normalize_jobs.status, normalize_jobs.status_message,
			normalize_jobs.progress_current, normalize_jobs.progress_total,
			normalize_jobs.games_ready, normalize_jobs.games_failed,
			normalize_jobs.last_error, normalize_jobs.retry_count,
			normalize_jobs.created_at, normalize_jobs.updated_at,
			normalize_jobs.started_at, normalize_jobs.completed_at
	`

	row := r.db.DB().QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the currently running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM normalize_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	row := r.db.DB().QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recent jobs.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM normalize_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	job := &Job{}
	err := scanner.Scan(
		&job.JobID,
		&job.JobType,
		&job.Season,
		&job.StartDate,
		&job.EndDate,
		&job.GamePKs,
		&job.DryRun,
		&job.Status,
		&job.StatusMessage,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&job.GamesReady,
		&job.GamesFailed,
		&job.LastError,
		&job.RetryCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
