package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/diamond/internal/backfill"
	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store/repository"
)

var normalizeOpts struct {
	date    string
	start   string
	end     string
	season  string
	games   []int64
	dir     string
	dryRun  bool
	noCache bool
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize games once and exit",
	Long: `Normalize a day, a date range, a season, specific games, or a directory
of saved live-feed JSON files. Each game is replaced atomically; rerunning
the same games yields identical rows.`,
	Example: `  diamond normalize --date 2024-06-01
  diamond normalize --start 2024-06-01 --end 2024-06-07
  diamond normalize --game 745001 --game 745002 --dry-run
  diamond normalize --dir ./feeds`,
	RunE: runNormalize,
}

func init() {
	f := normalizeCmd.Flags()
	f.StringVar(&normalizeOpts.date, "date", "", "single date (YYYY-MM-DD)")
	f.StringVar(&normalizeOpts.start, "start", "", "start date (YYYY-MM-DD)")
	f.StringVar(&normalizeOpts.end, "end", "", "end date (YYYY-MM-DD)")
	f.StringVar(&normalizeOpts.season, "season", "", "season year, e.g. 2024")
	f.Int64SliceVar(&normalizeOpts.games, "game", nil, "gamePk to normalize (repeatable)")
	f.StringVar(&normalizeOpts.dir, "dir", "", "directory of live-feed JSON files")
	f.BoolVar(&normalizeOpts.dryRun, "dry-run", false, "normalize without writing to the database")
	f.BoolVar(&normalizeOpts.noCache, "no-cache", false, "bypass the Redis feed cache")
	normalizeCmd.MarkFlagsMutuallyExclusive("date", "start")
	normalizeCmd.MarkFlagsMutuallyExclusive("dir", "game")
	normalizeCmd.MarkFlagsRequiredTogether("start", "end")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink normalize.Sink
	if !normalizeOpts.dryRun {
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		sink = repository.NewGameRepository(db)
	}

	driver, err := newDriver(sink)
	if err != nil {
		return err
	}
	reporter := &consoleReporter{dryRun: normalizeOpts.dryRun}

	var summary backfill.Summary
	if normalizeOpts.dir != "" {
		summary, err = normalizeDir(ctx, driver, normalizeOpts.dir, reporter)
	} else {
		spec, specErr := buildSpec()
		if specErr != nil {
			return specErr
		}
		spec.DryRun = normalizeOpts.dryRun

		var client *feed.Client
		if normalizeOpts.noCache {
			client = newFeedClient(nil)
		} else {
			rc, cacheErr := openCache(ctx)
			if cacheErr != nil {
				log.Printf("⚠️  %v (continuing without cache)", cacheErr)
			}
			if rc != nil {
				defer rc.Close()
			}
			client = newFeedClient(rc)
		}
		summary, err = backfill.NewRunner(client, driver).Run(ctx, spec, reporter)
	}
	if err != nil {
		return err
	}

	if n := len(summary.Failed); n > 0 {
		return fmt.Errorf("%d of %d games failed", n, summary.Total)
	}
	return nil
}

func normalizeDir(ctx context.Context, driver *normalize.Driver, dir string, reporter *consoleReporter) (backfill.Summary, error) {
	src, err := feed.NewDirSource(dir)
	if err != nil {
		return backfill.Summary{}, err
	}
	reporter.OnProgress(fmt.Sprintf("Normalizing files in %s", dir), 0, src.Len())

	outcomes, err := driver.Run(ctx, src, normalize.ObserverFunc(func(_ context.Context, o normalize.Outcome) {
		reporter.OnGameOutcome(o)
	}))
	summary := backfill.Summarize(outcomes)
	if err != nil {
		reporter.OnJobError(err)
		return summary, err
	}
	reporter.OnJobComplete(summary)
	return summary, nil
}

func buildSpec() (backfill.JobSpec, error) {
	o := normalizeOpts
	var spec backfill.JobSpec

	switch {
	case len(o.games) > 0:
		spec.Type = backfill.JobTypeGame
		spec.GamePKs = o.games
	case o.date != "":
		day, err := time.Parse("2006-01-02", o.date)
		if err != nil {
			return spec, fmt.Errorf("invalid date: %w", err)
		}
		spec.Type = backfill.JobTypeDateRange
		spec.Start, spec.End = day, day
	case o.start != "" && o.end != "":
		start, err := time.Parse("2006-01-02", o.start)
		if err != nil {
			return spec, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse("2006-01-02", o.end)
		if err != nil {
			return spec, fmt.Errorf("invalid end date: %w", err)
		}
		spec.Type = backfill.JobTypeDateRange
		spec.Start, spec.End = start, end
	case o.season != "":
		start, end, err := backfill.SeasonWindow(o.season)
		if err != nil {
			return spec, err
		}
		spec.Type = backfill.JobTypeSeason
		spec.Season = o.season
		spec.Start, spec.End = start, end
	default:
		return spec, fmt.Errorf("specify --date, --start/--end, --season, --game, or --dir")
	}

	return spec, nil
}

type consoleReporter struct {
	dryRun bool
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	log.Printf("Starting %s job (dry_run=%v)", spec.Type, c.dryRun)
}

func (c *consoleReporter) OnDateStart(date time.Time, index int, total int) {
	log.Printf("[%d/%d] %s", index+1, total, date.Format("2006-01-02"))
}

func (c *consoleReporter) OnGameOutcome(o normalize.Outcome) {
	if o.Status == normalize.StateReady {
		fmt.Printf("%d\t%s\t%d linescore\t%d runner_play\t%d best-effort\n",
			o.GamePK, o.Status, len(o.Rows.Linescores), len(o.Rows.RunnerPlays), o.Rows.BestEffortCount())
		return
	}
	fmt.Printf("%d\t%s\t%s\t%v\n", o.GamePK, o.Status, o.Reason(), o.Err)
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	log.Printf("Progress: %s (%d/%d)", message, current, total)
}

func (c *consoleReporter) OnJobComplete(summary backfill.Summary) {
	log.Printf("Job complete: %d games, %d ready, %d failed", summary.Total, summary.Ready, len(summary.Failed))
	for _, f := range summary.Failed {
		log.Printf("  re-run with --game %d (%s)", f.GamePK, f.Reason)
	}
}

func (c *consoleReporter) OnJobError(err error) {
	log.Printf("Job error: %v", err)
}
