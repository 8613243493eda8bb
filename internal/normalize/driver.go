package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

// GameState is a game's position in the normalization lifecycle.
type GameState string

const (
	StatePending     GameState = "PENDING"
	StateNormalizing GameState = "NORMALIZING"
	StateReady       GameState = "READY"
	StateFailed      GameState = "FAILED"
)

// Outcome is the final resolution of one game. Err is a *GameError when
// Status is StateFailed.
type Outcome struct {
	GamePK   int64
	Status   GameState
	Err      error
	Rows     *store.GameRows
	Duration time.Duration
}

// Reason returns the failure taxonomy name, or "" for a ready game.
func (o Outcome) Reason() string {
	return Reason(o.Err)
}

// Source yields raw game records one at a time. It returns io.EOF when done
// and a *feed.FetchError for a single game that could not be read.
type Source interface {
	Next(ctx context.Context) (*feed.Record, error)
}

// Sink replaces every stored row for a game with the given rows atomically.
type Sink interface {
	ReplaceGame(ctx context.Context, rows *store.GameRows) error
}

// Observer is notified of every outcome. It is called from worker
// goroutines and must be safe for concurrent use.
type Observer interface {
	OnGameOutcome(ctx context.Context, outcome Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, outcome Outcome)

func (f ObserverFunc) OnGameOutcome(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Config controls a Driver.
type Config struct {
	Workers    int
	RISPPolicy RISPPolicy
	Logger     *log.Logger

	// MaxTrackedGames bounds the per-game state kept for State lookups.
	// The oldest games are forgotten first. Default: 10000.
	MaxTrackedGames int
}

// Driver normalizes batches of games. Games are independent; one failing
// never stops the others.
type Driver struct {
	cfg       Config
	sink      Sink
	observers []Observer
	logger    *log.Logger

	mu     sync.RWMutex
	states map[int64]GameState
	order  []int64
}

// NewDriver creates a driver. A nil sink normalizes without writing.
func NewDriver(cfg Config, sink Sink, observers ...Observer) *Driver {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RISPPolicy == "" {
		cfg.RISPPolicy = RISPPerPlay
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.MaxTrackedGames <= 0 {
		cfg.MaxTrackedGames = 10000
	}
	return &Driver{
		cfg:       cfg,
		sink:      sink,
		observers: observers,
		logger:    cfg.Logger,
		states:    make(map[int64]GameState),
	}
}

// Config returns the driver's effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// DryRun returns a driver with the same configuration that writes nothing
// and notifies no observers.
func (d *Driver) DryRun() *Driver {
	return NewDriver(d.cfg, nil)
}

// AddObserver registers an observer. Not safe to call during Run.
func (d *Driver) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// State returns the last known state of a game in this process.
func (d *Driver) State(gamePK int64) (GameState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.states[gamePK]
	return s, ok
}

// setState records a game's state. Records without a usable gamepk are not
// tracked.
func (d *Driver) setState(gamePK int64, s GameState) {
	if gamePK <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.states[gamePK]; !ok {
		d.order = append(d.order, gamePK)
		for len(d.order) > d.cfg.MaxTrackedGames {
			delete(d.states, d.order[0])
			d.order = d.order[1:]
		}
	}
	d.states[gamePK] = s
}

// Run drains the source and normalizes every record on a bounded worker
// pool. Outcomes are returned in gamepk order. The error is non-nil only
// when the source itself fails or ctx is cancelled; per-game failures are
// reported in the outcomes. extra observers see only this run's games.
func (d *Driver) Run(ctx context.Context, src Source, extra ...Observer) ([]Outcome, error) {
	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	collect := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	var srcErr error
	for {
		rec, err := src.Next(gctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			o := Outcome{
				GamePK: fetchErr.GamePK,
				Status: StateFailed,
				Err:    &GameError{GamePK: fetchErr.GamePK, Kind: ErrFetch, Err: fetchErr.Err},
			}
			d.setState(o.GamePK, StateFailed)
			d.logger.Printf("[normalize] game %d FAILED: %v", o.GamePK, o.Err)
			d.notify(gctx, o, extra)
			collect(o)
			continue
		}
		if err != nil {
			srcErr = fmt.Errorf("read source: %w", err)
			break
		}

		d.setState(rec.GamePK(), StatePending)
		g.Go(func() error {
			collect(d.NormalizeOne(gctx, rec, extra...))
			return nil
		})
	}

	_ = g.Wait()

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].GamePK < outcomes[j].GamePK
	})

	if srcErr == nil {
		srcErr = ctx.Err()
	}
	return outcomes, srcErr
}

// NormalizeOne takes a single record through NORMALIZING to READY or FAILED
// and hands ready rows to the sink.
func (d *Driver) NormalizeOne(ctx context.Context, rec *feed.Record, extra ...Observer) Outcome {
	started := time.Now()
	gamePK := rec.GamePK()
	d.setState(gamePK, StateNormalizing)

	o := d.normalize(ctx, rec)
	o.Duration = time.Since(started)

	d.setState(o.GamePK, o.Status)
	if o.Status == StateFailed {
		d.logger.Printf("[normalize] game %d FAILED (%s): %v", o.GamePK, o.Reason(), o.Err)
	} else {
		d.logger.Printf("[normalize] game %d READY: %d linescore rows, %d runner rows in %s",
			o.GamePK, len(o.Rows.Linescores), len(o.Rows.RunnerPlays), o.Duration.Round(time.Millisecond))
	}

	d.notify(ctx, o, extra)
	return o
}

func (d *Driver) normalize(ctx context.Context, rec *feed.Record) Outcome {
	gamePK := rec.GamePK()

	rows, err := Normalize(rec, d.cfg.RISPPolicy)
	if err != nil {
		return Outcome{GamePK: gamePK, Status: StateFailed, Err: newGameError(gamePK, ErrMalformedGameRecord, err)}
	}

	if n := rows.BestEffortCount(); n > 0 {
		d.logger.Printf("[normalize] game %d: %d runner rows recovered from %v", gamePK, n, ErrInconsistentRunnerState)
	}
	if away, home := finalFromLinescores(rows); away != rows.Game.AwayTeamScore || home != rows.Game.HomeTeamScore {
		d.logger.Printf("[normalize] game %d: play-by-play runs %d-%d differ from final score %d-%d",
			gamePK, away, home, rows.Game.AwayTeamScore, rows.Game.HomeTeamScore)
	}

	if d.sink != nil {
		if err := d.sink.ReplaceGame(ctx, rows); err != nil {
			return Outcome{GamePK: gamePK, Status: StateFailed, Err: newGameError(gamePK, ErrSinkWrite, err), Rows: rows}
		}
	}

	return Outcome{GamePK: gamePK, Status: StateReady, Rows: rows}
}

func (d *Driver) notify(ctx context.Context, o Outcome, extra []Observer) {
	for _, obs := range d.observers {
		obs.OnGameOutcome(ctx, o)
	}
	for _, obs := range extra {
		obs.OnGameOutcome(ctx, o)
	}
}

// finalFromLinescores returns the last cumulative score each side reached.
func finalFromLinescores(rows *store.GameRows) (away, home int) {
	for _, l := range rows.Linescores {
		if l.BattingTeamID == rows.Game.AwayTeamID {
			away = l.BattingTeamScore
		} else {
			home = l.BattingTeamScore
		}
	}
	return away, home
}
