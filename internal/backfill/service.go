package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store"
)

// Request represents a normalization job request.
type Request struct {
	Season    string
	StartDate *time.Time
	EndDate   *time.Time
	GamePKs   []int64
	DryRun    bool
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if len(r.GamePKs) > 0 {
		return JobTypeGame, nil
	}
	if r.StartDate != nil && r.EndDate != nil {
		return JobTypeDateRange, nil
	}
	if r.Season != "" {
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("unable to determine job type from request")
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   *Repository
	runner *Runner

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(db *store.Database, runner *Runner, logger *log.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = log.New(log.Writer(), "[backfill] ", log.LstdFlags)
	}

	return &Service{
		repo:         NewRepository(db),
		runner:       runner,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Printf("failed to reset jobs: %v", err)
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for it to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	jobType, err := req.DeriveType()
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       jobType,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		Season:        sql.NullString{String: req.Season, Valid: req.Season != ""},
		DryRun:        req.DryRun,
	}

	switch jobType {
	case JobTypeGame:
		job.GamePKs = req.GamePKs
		job.ProgressTotal = len(req.GamePKs)
	case JobTypeSeason:
		start, end, err := SeasonWindow(req.Season)
		if err != nil {
			return nil, err
		}
		job.StartDate = sql.NullTime{Time: start, Valid: true}
		job.EndDate = sql.NullTime{Time: end, Valid: true}
	case JobTypeDateRange:
		start, end := truncateDate(*req.StartDate), truncateDate(*req.EndDate)
		if end.Before(start) {
			return nil, fmt.Errorf("end_date %s is before start_date %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
		job.StartDate = sql.NullTime{Time: start, Valid: true}
		job.EndDate = sql.NullTime{Time: end, Valid: true}
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, Event{Type: "queued", Message: "Job queued"})

	return stored, nil
}

// EnqueueDate queues a date-range job covering a single day.
func (s *Service) EnqueueDate(ctx context.Context, date time.Time) (*Job, error) {
	day := truncateDate(date)
	return s.Enqueue(ctx, Request{StartDate: &day, EndDate: &day})
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Printf("claim job error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	spec, err := buildSpec(job)
	if err != nil {
		s.logger.Printf("invalid job spec %s: %v", job.JobID, err)
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Invalid job parameters", err)
		return
	}

	reporter := newJobReporter(s.ctx, s.repo, job.JobID, s.logger)

	summary, err := s.runner.Run(s.ctx, spec, reporter)
	if err != nil {
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	msg := fmt.Sprintf("Job completed: %d ready, %d failed", summary.Ready, len(summary.Failed))
	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, msg, nil)
}

func buildSpec(job *Job) (JobSpec, error) {
	spec := JobSpec{
		Type:   job.JobType,
		Season: job.Season.String,
		DryRun: job.DryRun,
	}

	switch job.JobType {
	case JobTypeGame:
		if len(job.GamePKs) == 0 {
			return spec, fmt.Errorf("game job missing game_pks")
		}
		spec.GamePKs = []int64(job.GamePKs)
	case JobTypeSeason, JobTypeDateRange:
		if !job.StartDate.Valid || !job.EndDate.Valid {
			return spec, fmt.Errorf("job missing start/end dates")
		}
		spec.Start = job.StartDate.Time
		spec.End = job.EndDate.Time
	default:
		return spec, fmt.Errorf("unknown job type %s", job.JobType)
	}

	return spec, nil
}

// jobReporter persists runner progress. OnGameOutcome arrives from several
// workers at once.
type jobReporter struct {
	ctx    context.Context
	repo   *Repository
	jobID  string
	logger *log.Logger

	mu     sync.Mutex
	total  int
	ready  int
	failed int
}

func newJobReporter(ctx context.Context, repo *Repository, jobID string, logger *log.Logger) *jobReporter {
	return &jobReporter{ctx: ctx, repo: repo, jobID: jobID, logger: logger}
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if spec.Type == JobTypeGame {
		r.total = len(spec.GamePKs)
	}
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, r.total, 0, 0, "Job starting")
}

func (r *jobReporter) OnDateStart(date time.Time, index int, total int) {
	msg := fmt.Sprintf("Resolving schedule for %s (%d/%d)", date.Format("Jan 2, 2006"), index+1, total)
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, 0, 0, 0, msg)
}

func (r *jobReporter) OnGameOutcome(o normalize.Outcome) {
	r.mu.Lock()
	if o.Status == normalize.StateReady {
		r.ready++
	} else {
		r.failed++
	}
	current, total, ready, failed := r.ready+r.failed, r.total, r.ready, r.failed
	r.mu.Unlock()

	if o.Status != normalize.StateReady {
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		if err := r.repo.AppendEvent(r.ctx, r.jobID, Event{Type: "game_failed", GamePK: o.GamePK, Reason: o.Reason(), Message: msg}); err != nil {
			r.logger.Printf("record failure for game %d: %v", o.GamePK, err)
		}
	}

	msg := fmt.Sprintf("Normalized %d/%d games", current, total)
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, current, total, ready, failed, msg)
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	r.mu.Lock()
	if total > 0 {
		r.total = total
	}
	ready, failed := r.ready, r.failed
	total = r.total
	r.mu.Unlock()

	_ = r.repo.UpdateProgress(r.ctx, r.jobID, current, total, ready, failed, message)
}

func (r *jobReporter) OnJobComplete(summary Summary) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, summary.Total, summary.Total, summary.Ready, len(summary.Failed), "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	_ = r.repo.AppendEvent(r.ctx, r.jobID, Event{Type: "error", Message: err.Error()})
}

// SeasonWindow covers spring training through the end of the postseason.
func SeasonWindow(season string) (time.Time, time.Time, error) {
	year, err := strconv.Atoi(strings.TrimSpace(season))
	if err != nil || year < 1876 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid season %q", season)
	}
	start := time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.November, 30, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
