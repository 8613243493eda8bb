package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/fortuna/diamond/internal/backfill"
)

// DefaultDailyCron runs the daily normalization at 03:00, after West Coast
// games have gone final.
const DefaultDailyCron = "0 3 * * *"

// Enqueuer queues a normalization job for one day's games.
type Enqueuer interface {
	EnqueueDate(ctx context.Context, date time.Time) (*backfill.Job, error)
}

// Config holds scheduler configuration
type Config struct {
	DailyCron            string         // Default: DefaultDailyCron
	Location             *time.Location // Default: UTC
	EnableDailyIngestion bool
	MaxRetries           uint64        // Default: 3
	RetryDelay           time.Duration // Default: 5s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		DailyCron:            DefaultDailyCron,
		Location:             time.UTC,
		EnableDailyIngestion: true,
		MaxRetries:           3,
		RetryDelay:           5 * time.Second,
	}
}

// Orchestrator enqueues the previous day's games on a cron schedule.
type Orchestrator struct {
	jobs   Enqueuer
	config *Config
	cron   *cron.Cron
	entry  cron.EntryID
	now    func() time.Time

	mu      sync.Mutex
	lastRun time.Time
	lastJob string
	lastErr error
}

// NewOrchestrator validates the schedule and creates an orchestrator.
func NewOrchestrator(jobs Enqueuer, config *Config) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DailyCron == "" {
		config.DailyCron = DefaultDailyCron
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}

	o := &Orchestrator{
		jobs:   jobs,
		config: config,
		cron:   cron.New(cron.WithLocation(config.Location)),
		now:    time.Now,
	}

	entry, err := o.cron.AddFunc(config.DailyCron, func() {
		_ = o.RunDaily(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("parse daily cron %q: %w", config.DailyCron, err)
	}
	o.entry = entry

	return o, nil
}

// Start begins the cron loop. It returns immediately.
func (o *Orchestrator) Start() {
	if !o.config.EnableDailyIngestion {
		log.Println("[scheduler] daily normalization disabled")
		return
	}
	o.cron.Start()
	log.Printf("[scheduler] daily normalization scheduled (%s %s), next run %s",
		o.config.DailyCron, o.config.Location, o.NextRun().Format(time.RFC3339))
}

// Stop waits for a running job to finish enqueueing.
func (o *Orchestrator) Stop() {
	ctx := o.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] stopped")
}

// NextRun returns the next scheduled run.
func (o *Orchestrator) NextRun() time.Time {
	return o.cron.Entry(o.entry).Schedule.Next(o.now().In(o.config.Location))
}

// RunDaily enqueues the previous day's games, retrying transient failures.
func (o *Orchestrator) RunDaily(ctx context.Context) error {
	now := o.now().In(o.config.Location)
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return o.TriggerManualIngestion(ctx, yesterday)
}

// TriggerManualIngestion enqueues a single day's games.
func (o *Orchestrator) TriggerManualIngestion(ctx context.Context, date time.Time) error {
	log.Printf("[scheduler] enqueueing games from %s", date.Format("2006-01-02"))

	var job *backfill.Job
	backoff := retry.WithMaxRetries(o.config.MaxRetries, retry.NewConstant(o.config.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		job, err = o.jobs.EnqueueDate(ctx, date)
		if err != nil {
			log.Printf("[scheduler] enqueue %s failed: %v", date.Format("2006-01-02"), err)
			return retry.RetryableError(err)
		}
		return nil
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRun = o.now()
	o.lastErr = err
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", date.Format("2006-01-02"), err)
	}
	o.lastJob = job.JobID
	log.Printf("[scheduler] queued job %s for %s", job.JobID, date.Format("2006-01-02"))
	return nil
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"daily_ingestion_enabled": o.config.EnableDailyIngestion,
		"daily_cron":              o.config.DailyCron,
		"next_run":                o.NextRun(),
	}
	if !o.lastRun.IsZero() {
		status["last_run"] = o.lastRun
		status["last_job_id"] = o.lastJob
	}
	if o.lastErr != nil {
		status["last_error"] = o.lastErr.Error()
	}
	return status
}
