package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/normalize"
)

// Client is the StatsAPI surface the runner needs.
type Client interface {
	feed.Fetcher
	FetchSchedule(ctx context.Context, date time.Time) ([]int64, error)
}

// Runner executes job specs: it resolves the games, fetches each live feed
// and runs them through the normalization driver.
type Runner struct {
	client Client
	driver *normalize.Driver
}

// NewRunner constructs a runner.
func NewRunner(client Client, driver *normalize.Driver) *Runner {
	return &Runner{
		client: client,
		driver: driver,
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// Per-game failures are part of the summary; the error is reserved for
// failures that stop the whole job.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (Summary, error) {
	if reporter != nil {
		reporter.OnJobStart(spec)
	}

	pks, err := r.resolveGames(ctx, spec, reporter)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return Summary{}, err
	}

	if len(pks) == 0 {
		if reporter != nil {
			reporter.OnProgress("No games to normalize", 0, 0)
			reporter.OnJobComplete(Summary{})
		}
		return Summary{}, nil
	}

	driver := r.driver
	if spec.DryRun {
		driver = driver.DryRun()
		if reporter != nil {
			reporter.OnProgress("Dry-run mode: no data will be written", 0, len(pks))
		}
	}
	if reporter != nil {
		reporter.OnProgress(fmt.Sprintf("Normalizing %d games", len(pks)), 0, len(pks))
	}

	var observers []normalize.Observer
	if reporter != nil {
		observers = append(observers, normalize.ObserverFunc(func(_ context.Context, o normalize.Outcome) {
			reporter.OnGameOutcome(o)
		}))
	}

	outcomes, err := driver.Run(ctx, feed.NewGamePKSource(r.client, pks), observers...)
	summary := Summarize(outcomes)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return summary, err
	}

	if reporter != nil {
		reporter.OnJobComplete(summary)
	}
	return summary, nil
}

// resolveGames expands a JobSpec into the gamePks to normalize.
func (r *Runner) resolveGames(ctx context.Context, spec JobSpec, reporter Reporter) ([]int64, error) {
	switch spec.Type {
	case JobTypeGame:
		if len(spec.GamePKs) == 0 {
			return nil, fmt.Errorf("no game pks provided for job type 'game'")
		}
		return spec.GamePKs, nil
	case JobTypeSeason, JobTypeDateRange:
		dates := enumerateDates(spec.Start, spec.End)
		var pks []int64
		seen := make(map[int64]bool)
		for idx, date := range dates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if reporter != nil {
				reporter.OnDateStart(date, idx, len(dates))
			}

			dayPKs, err := r.client.FetchSchedule(ctx, date)
			if err != nil {
				return nil, fmt.Errorf("fetch schedule for %s: %w", date.Format("2006-01-02"), err)
			}
			for _, pk := range dayPKs {
				if !seen[pk] {
					seen[pk] = true
					pks = append(pks, pk)
				}
			}
		}
		return pks, nil
	default:
		return nil, fmt.Errorf("unsupported job type %s", spec.Type)
	}
}

// Summarize counts outcomes by status.
func Summarize(outcomes []normalize.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Status == normalize.StateReady {
			s.Ready++
			continue
		}
		fg := FailedGame{GamePK: o.GamePK, Reason: o.Reason()}
		if o.Err != nil {
			fg.Error = o.Err.Error()
		}
		s.Failed = append(s.Failed, fg)
	}
	return s
}

func enumerateDates(start, end time.Time) []time.Time {
	if end.Before(start) {
		start, end = end, start
	}

	var dates []time.Time
	current := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	final := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !current.After(final) {
		dates = append(dates, current)
		current = current.AddDate(0, 0, 1)
	}

	return dates
}
