package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/fortuna/diamond/internal/store"
)

// runnerPlayBatch bounds rows per INSERT to stay under the Postgres parameter limit.
const runnerPlayBatch = 500

var (
	gameColumns = []string{
		"gamepk", "gamedate", "officialdate", "sportid", "gametype", "codedgamestate", "detailedstate",
		"awayteamid", "awayteamname", "awayteamscore", "hometeamid", "hometeamname", "hometeamscore",
		"venueid", "venuename", "scheduledinnings",
	}
	linescoreColumns = []string{
		"gamepk", "inning", "half", "battingteamid", "runs", "hits", "errors", "leftonbase",
		"battingteam_score", "battingteam_score_diff",
	}
	runnerPlayColumns = []string{
		"gamepk", "atbatindex", "playindex", "runnerid", "runnerfullname", "playid",
		"startbase", "endbase", "reachedbase", "is_out", "eventtype", "movementreason",
		"is_risp", "is_firsttothird", "is_secondtohome",
	}
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// GameRepository writes and reads normalized game rows
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// ReplaceGame deletes every row stored for the game across game, linescore
// and runner_play and inserts the new rows in one transaction, so readers
// see either the old rows or the new rows for the gamepk, never a mix.
func (r *GameRepository) ReplaceGame(ctx context.Context, rows *store.GameRows) error {
	if rows == nil || rows.Game == nil {
		return fmt.Errorf("replace game: no game row")
	}
	gamePK := rows.Game.GamePK

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace game %d: %w", gamePK, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"runner_play", "linescore", "game"} {
		query, args, err := psql.Delete(table).Where(squirrel.Eq{"gamepk": gamePK}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete %s for game %d: %w", table, gamePK, err)
		}
	}

	if err := execInsert(ctx, tx, gameInsert(rows.Game)); err != nil {
		return fmt.Errorf("insert game %d: %w", gamePK, err)
	}

	if len(rows.Linescores) > 0 {
		if err := execInsert(ctx, tx, linescoreInsert(rows.Linescores)); err != nil {
			return fmt.Errorf("insert linescore for game %d: %w", gamePK, err)
		}
	}

	for start := 0; start < len(rows.RunnerPlays); start += runnerPlayBatch {
		end := start + runnerPlayBatch
		if end > len(rows.RunnerPlays) {
			end = len(rows.RunnerPlays)
		}
		if err := execInsert(ctx, tx, runnerPlayInsert(rows.RunnerPlays[start:end])); err != nil {
			return fmt.Errorf("insert runner_play for game %d: %w", gamePK, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace game %d: %w", gamePK, err)
	}
	return nil
}

func execInsert(ctx context.Context, tx *sql.Tx, builder squirrel.InsertBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func gameInsert(g *store.Game) squirrel.InsertBuilder {
	var gameType interface{}
	if g.GameType != "" {
		gameType = g.GameType
	}
	return psql.Insert("game").Columns(gameColumns...).Values(
		g.GamePK, g.GameDate, g.OfficialDate, g.SportID, gameType, g.CodedGameState, g.DetailedState,
		g.AwayTeamID, g.AwayTeamName, g.AwayTeamScore, g.HomeTeamID, g.HomeTeamName, g.HomeTeamScore,
		g.VenueID, g.VenueName, g.ScheduledInnings,
	)
}

func linescoreInsert(lines []*store.Linescore) squirrel.InsertBuilder {
	b := psql.Insert("linescore").Columns(linescoreColumns...)
	for _, l := range lines {
		b = b.Values(
			l.GamePK, l.Inning, string(l.Half), l.BattingTeamID, l.Runs, l.Hits, l.Errors, l.LeftOnBase,
			l.BattingTeamScore, l.BattingTeamScoreDiff,
		)
	}
	return b
}

func runnerPlayInsert(plays []*store.RunnerPlay) squirrel.InsertBuilder {
	b := psql.Insert("runner_play").Columns(runnerPlayColumns...)
	for _, p := range plays {
		b = b.Values(
			p.GamePK, p.AtBatIndex, p.PlayIndex, p.RunnerID, p.RunnerFullName, p.PlayID,
			p.StartBase, p.EndBase, p.ReachedBase, p.IsOut, p.EventType, p.MovementReason,
			p.IsRISP, p.IsFirstToThird, p.IsSecondToHome,
		)
	}
	return b
}

// GetGameStatus reports whether a game is stored and how many rows it has.
func (r *GameRepository) GetGameStatus(ctx context.Context, gamePK int64) (*store.GameStatus, error) {
	query := `
		SELECT g.detailedstate,
			(SELECT COUNT(*) FROM linescore l WHERE l.gamepk = g.gamepk),
			(SELECT COUNT(*) FROM runner_play rp WHERE rp.gamepk = g.gamepk)
		FROM game g
		WHERE g.gamepk = $1
	`

	status := &store.GameStatus{GamePK: gamePK}
	err := r.db.DB().QueryRowContext(ctx, query, gamePK).Scan(
		&status.DetailedState, &status.LinescoreRows, &status.RunnerPlayRows,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying game status: %w", err)
	}

	status.Stored = true
	return status, nil
}
