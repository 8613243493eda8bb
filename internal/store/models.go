package store

import (
	"database/sql"

	"github.com/fortuna/diamond/internal/baseball"
)

// Game is one row of the game table.
type Game struct {
	GamePK           int64          `json:"gamepk" db:"gamepk"`
	GameDate         sql.NullTime   `json:"gamedate" db:"gamedate"`
	OfficialDate     sql.NullTime   `json:"officialdate" db:"officialdate"`
	SportID          int            `json:"sportid" db:"sportid"`
	GameType         string         `json:"gametype" db:"gametype"`
	CodedGameState   sql.NullString `json:"codedgamestate" db:"codedgamestate"`
	DetailedState    string         `json:"detailedstate" db:"detailedstate"`
	AwayTeamID       int            `json:"awayteamid" db:"awayteamid"`
	AwayTeamName     string         `json:"awayteamname" db:"awayteamname"`
	AwayTeamScore    int            `json:"awayteamscore" db:"awayteamscore"`
	HomeTeamID       int            `json:"hometeamid" db:"hometeamid"`
	HomeTeamName     string         `json:"hometeamname" db:"hometeamname"`
	HomeTeamScore    int            `json:"hometeamscore" db:"hometeamscore"`
	VenueID          sql.NullInt64  `json:"venueid" db:"venueid"`
	VenueName        sql.NullString `json:"venuename" db:"venuename"`
	ScheduledInnings int            `json:"scheduledinnings" db:"scheduledinnings"`
}

// WinningTeamID returns the team with more runs, or 0 for a tie.
func (g *Game) WinningTeamID() int {
	switch {
	case g.HomeTeamScore > g.AwayTeamScore:
		return g.HomeTeamID
	case g.AwayTeamScore > g.HomeTeamScore:
		return g.AwayTeamID
	default:
		return 0
	}
}

// Linescore is one half-inning, keyed by (gamepk, inning, half).
type Linescore struct {
	GamePK               int64         `json:"gamepk" db:"gamepk"`
	Inning               int           `json:"inning" db:"inning"`
	Half                 baseball.Half `json:"half" db:"half"`
	BattingTeamID        int           `json:"battingteamid" db:"battingteamid"`
	Runs                 int           `json:"runs" db:"runs"`
	Hits                 int           `json:"hits" db:"hits"`
	Errors               int           `json:"errors" db:"errors"`
	LeftOnBase           int           `json:"leftonbase" db:"leftonbase"`
	BattingTeamScore     int           `json:"battingteam_score" db:"battingteam_score"`
	BattingTeamScoreDiff int           `json:"battingteam_score_diff" db:"battingteam_score_diff"`
}

// OpponentDiff is the score differential from the fielding team's perspective.
func (l *Linescore) OpponentDiff() int {
	return -l.BattingTeamScoreDiff
}

// DiffBefore is the batting team's differential entering the half.
func (l *Linescore) DiffBefore() int {
	return l.BattingTeamScoreDiff - l.Runs
}

// RunnerPlay is one runner's movement within a play, keyed by
// (gamepk, atbatindex, playindex, runnerid).
type RunnerPlay struct {
	GamePK         int64                    `json:"gamepk" db:"gamepk"`
	AtBatIndex     int                      `json:"atbatindex" db:"atbatindex"`
	PlayIndex      int                      `json:"playindex" db:"playindex"`
	RunnerID       int64                    `json:"runnerid" db:"runnerid"`
	RunnerFullName sql.NullString           `json:"runnerfullname" db:"runnerfullname"`
	PlayID         sql.NullString           `json:"playid" db:"playid"`
	StartBase      baseball.Base            `json:"startbase" db:"startbase"`
	EndBase        baseball.Base            `json:"endbase" db:"endbase"`
	ReachedBase    baseball.Base            `json:"reachedbase" db:"reachedbase"`
	IsOut          bool                     `json:"is_out" db:"is_out"`
	EventType      baseball.EventTags       `json:"eventtype" db:"eventtype"`
	MovementReason baseball.MovementReasons `json:"movementreason" db:"movementreason"`
	IsRISP         bool                     `json:"is_risp" db:"is_risp"`
	IsFirstToThird bool                     `json:"is_firsttothird" db:"is_firsttothird"`
	IsSecondToHome bool                     `json:"is_secondtohome" db:"is_secondtohome"`

	// BestEffort marks rows recovered from inconsistent runner state. Not persisted.
	BestEffort bool `json:"-" db:"-"`
}

// GameRows is everything normalized for one game. The three sets are
// written together and replace any earlier rows for the same gamepk.
type GameRows struct {
	Game        *Game
	Linescores  []*Linescore
	RunnerPlays []*RunnerPlay
}

// GamePK returns the key shared by all three row sets.
func (r *GameRows) GamePK() int64 {
	if r == nil || r.Game == nil {
		return 0
	}
	return r.Game.GamePK
}

// BestEffortCount returns how many runner rows were recovered from inconsistent state.
func (r *GameRows) BestEffortCount() int {
	n := 0
	for _, rp := range r.RunnerPlays {
		if rp.BestEffort {
			n++
		}
	}
	return n
}

// GameStatus summarizes what is stored for a gamepk.
type GameStatus struct {
	GamePK         int64  `json:"gamepk"`
	Stored         bool   `json:"stored"`
	DetailedState  string `json:"detailedstate,omitempty"`
	LinescoreRows  int    `json:"linescore_rows"`
	RunnerPlayRows int    `json:"runner_play_rows"`
}
