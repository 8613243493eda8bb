package publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/diamond/internal/normalize"
)

// NormalizedStream receives one entry per game outcome.
const NormalizedStream = "games.normalized.baseball_mlb"

// ComebackHalf identifies a half-inning the eventual winner came from behind in.
type ComebackHalf struct {
	Inning int    `json:"inning"`
	Half   string `json:"half"`
}

// GameSummary is the payload published for each normalized game.
type GameSummary struct {
	GamePK         int64          `json:"gamepk"`
	Status         string         `json:"status"`
	Reason         string         `json:"reason,omitempty"`
	Error          string         `json:"error,omitempty"`
	LinescoreRows  int            `json:"linescore_rows"`
	RunnerPlayRows int            `json:"runner_play_rows"`
	BestEffortRows int            `json:"best_effort_rows"`
	AwayTeamScore  int            `json:"awayteamscore"`
	HomeTeamScore  int            `json:"hometeamscore"`
	WinningTeamID  int            `json:"winningteamid,omitempty"`
	ComebackHalves []ComebackHalf `json:"comeback_halves,omitempty"`
}

// Summarize reduces an outcome to its published form.
func Summarize(o normalize.Outcome) GameSummary {
	s := GameSummary{
		GamePK: o.GamePK,
		Status: string(o.Status),
		Reason: o.Reason(),
	}
	if o.Err != nil {
		s.Error = o.Err.Error()
	}
	if o.Rows == nil || o.Rows.Game == nil {
		return s
	}

	s.LinescoreRows = len(o.Rows.Linescores)
	s.RunnerPlayRows = len(o.Rows.RunnerPlays)
	s.BestEffortRows = o.Rows.BestEffortCount()
	s.AwayTeamScore = o.Rows.Game.AwayTeamScore
	s.HomeTeamScore = o.Rows.Game.HomeTeamScore
	s.WinningTeamID = o.Rows.Game.WinningTeamID()
	for _, l := range normalize.ComebackHalves(o.Rows.Game, o.Rows.Linescores) {
		s.ComebackHalves = append(s.ComebackHalves, ComebackHalf{Inning: l.Inning, Half: string(l.Half)})
	}
	return s
}

// RedisStreamPublisher publishes normalization outcomes to a Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	logger *log.Logger
}

// NewRedisStreamPublisher creates a publisher from an existing client.
func NewRedisStreamPublisher(client *redis.Client, logger *log.Logger) *RedisStreamPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisStreamPublisher{
		client: client,
		stream: NormalizedStream,
		logger: logger,
	}
}

// PublishGameNormalized appends a game summary to the stream.
func (p *RedisStreamPublisher) PublishGameNormalized(ctx context.Context, summary GameSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"gamepk":    summary.GamePK,
			"status":    summary.Status,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

// OnGameOutcome publishes every outcome. Publish failures are logged and
// never affect the game's result.
func (p *RedisStreamPublisher) OnGameOutcome(ctx context.Context, o normalize.Outcome) {
	if err := p.PublishGameNormalized(ctx, Summarize(o)); err != nil {
		p.logger.Printf("[publisher] game %d: publish to %s failed: %v", o.GamePK, p.stream, err)
	}
}
