package normalize

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

const (
	defaultDetailedState    = "Unknown"
	defaultScheduledInnings = 9
	defaultSportID          = 1
)

var gameDateLayouts = []string{time.RFC3339, "2006-01-02T15:04Z", "2006-01-02T15:04:05"}

// BuildGame extracts the game row. Missing identity or final scores fail the
// whole record; optional fields take defaults.
func BuildGame(rec *feed.Record) (*store.Game, error) {
	gamePK := rec.GamePK()
	var missing []string
	if gamePK == 0 {
		missing = append(missing, "gamepk")
	}

	game := &store.Game{
		GamePK:           gamePK,
		SportID:          defaultSportID,
		DetailedState:    defaultDetailedState,
		ScheduledInnings: defaultScheduledInnings,
	}

	game.AwayTeamID = int(rec.Get("gameData.teams.away.id").Int())
	if game.AwayTeamID == 0 {
		missing = append(missing, "awayteamid")
	}
	game.HomeTeamID = int(rec.Get("gameData.teams.home.id").Int())
	if game.HomeTeamID == 0 {
		missing = append(missing, "hometeamid")
	}
	game.AwayTeamName = rec.Get("gameData.teams.away.name").String()
	game.HomeTeamName = rec.Get("gameData.teams.home.name").String()

	var err error
	if game.AwayTeamScore, err = extractScore(rec.Get("liveData.linescore.teams.away.runs")); err != nil {
		missing = append(missing, "awayteamscore")
	}
	if game.HomeTeamScore, err = extractScore(rec.Get("liveData.linescore.teams.home.runs")); err != nil {
		missing = append(missing, "hometeamscore")
	}

	if len(missing) > 0 {
		return nil, malformed(gamePK, "missing %s", strings.Join(missing, ", "))
	}

	if sport := rec.Get("gameData.teams.home.sport.id"); sport.Exists() && sport.Int() > 0 {
		game.SportID = int(sport.Int())
	}

	if gt := strings.TrimSpace(rec.Get("gameData.game.type").String()); gt != "" {
		if len(gt) != 1 {
			return nil, malformed(gamePK, "gametype %q is not a single character", gt)
		}
		game.GameType = gt
	}

	if state := rec.Get("gameData.status.codedGameState").String(); state != "" {
		game.CodedGameState = sql.NullString{String: state, Valid: true}
	}
	if state := rec.Get("gameData.status.detailedState").String(); state != "" {
		game.DetailedState = state
	}

	game.GameDate = extractTime(rec.Get("gameData.datetime.dateTime"), gameDateLayouts...)
	game.OfficialDate = extractTime(rec.Get("gameData.datetime.officialDate"), "2006-01-02")

	if venue := rec.Get("gameData.venue.id"); venue.Exists() {
		game.VenueID = sql.NullInt64{Int64: venue.Int(), Valid: true}
	}
	if name := rec.Get("gameData.venue.name").String(); name != "" {
		game.VenueName = sql.NullString{String: name, Valid: true}
	}

	if innings := rec.Get("liveData.linescore.scheduledInnings").Int(); innings > 0 {
		game.ScheduledInnings = int(innings)
	}

	return game, nil
}

// extractScore accepts a number or a numeric string and rejects negatives.
func extractScore(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		if v.Num < 0 || v.Num != float64(int(v.Num)) {
			return 0, fmt.Errorf("invalid score %v", v.Num)
		}
		return int(v.Num), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid score %q", v.Str)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("score not present")
	}
}

func extractTime(v gjson.Result, layouts ...string) sql.NullTime {
	raw := strings.TrimSpace(v.String())
	if raw == "" {
		return sql.NullTime{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	return sql.NullTime{}
}
