package backfill

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/diamond/internal/normalize"
)

// JobType enumerates the supported normalization job variants.
type JobType string

const (
	JobTypeSeason    JobType = "season"
	JobTypeDateRange JobType = "date_range"
	JobTypeGame      JobType = "game"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job models the database representation of a normalization job.
type Job struct {
	JobID           string         `json:"job_id"`
	JobType         JobType        `json:"job_type"`
	Season          sql.NullString `json:"-"`
	StartDate       sql.NullTime   `json:"-"`
	EndDate         sql.NullTime   `json:"-"`
	GamePKs         pq.Int64Array  `json:"game_pks,omitempty"`
	DryRun          bool           `json:"dry_run"`
	Status          JobStatus      `json:"status"`
	StatusMessage   sql.NullString `json:"-"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	GamesReady      int            `json:"games_ready"`
	GamesFailed     int            `json:"games_failed"`
	LastError       sql.NullString `json:"-"`
	RetryCount      int            `json:"retry_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       sql.NullTime   `json:"-"`
	CompletedAt     sql.NullTime   `json:"-"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type    JobType
	Season  string
	Start   time.Time
	End     time.Time
	GamePKs []int64
	DryRun  bool
}

// Reporter receives lifecycle callbacks from the runner. OnGameOutcome is
// called from normalization workers concurrently.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnDateStart(date time.Time, index int, total int)
	OnGameOutcome(outcome normalize.Outcome)
	OnProgress(message string, current int, total int)
	OnJobComplete(summary Summary)
	OnJobError(err error)
}

// Summary counts how a job's games resolved.
type Summary struct {
	Total  int          `json:"total"`
	Ready  int          `json:"ready"`
	Failed []FailedGame `json:"failed,omitempty"`
}

// FailedGame is a game that can be re-enqueued on its own.
type FailedGame struct {
	GamePK int64  `json:"gamepk"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
