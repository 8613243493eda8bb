package normalize

import (
	"github.com/fortuna/diamond/internal/baseball"
	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

// errorCredits are the fielding credits charged as errors.
var errorCredits = map[string]bool{
	"f_fielding_error": true,
	"f_throwing_error": true,
	"f_error":          true,
}

type halfKey struct {
	inning int
	half   baseball.Half
}

// halfTally accumulates one half-inning. It only exists once a play in the
// half has been seen, so unplayed halves never produce rows.
type halfTally struct {
	key    halfKey
	runs   int
	hits   int
	errors int
}

// Scoreboard is each side's cumulative runs, indexed by baseball.Side.
type Scoreboard [2]int

// addPlay folds one at-bat's hit and error credits into the tally.
func (t *halfTally) addPlay(play *feed.Play) {
	if baseball.ParseEventTag(play.ResultEventType).IsHit() {
		t.hits++
	}

	type charge struct {
		fielder int64
		credit  string
	}
	seen := make(map[charge]bool)
	for _, seg := range play.Runners {
		for _, c := range seg.Credits {
			if !errorCredits[c.Credit] {
				continue
			}
			k := charge{c.PlayerID, c.Credit}
			if !seen[k] {
				seen[k] = true
				t.errors++
			}
		}
	}
}

// addRows counts runs from the play's runner rows.
func (t *halfTally) addRows(rows []*store.RunnerPlay) int {
	scored := 0
	for _, r := range rows {
		if r.ReachedBase == baseball.BaseHome && !r.IsOut {
			scored++
		}
	}
	t.runs += scored
	return scored
}

// close emits the linescore row. score already includes this half's runs.
func (t *halfTally) close(gamePK int64, teams [2]int, score Scoreboard, bases Bases) *store.Linescore {
	side := t.key.half.BattingSide()
	return &store.Linescore{
		GamePK:               gamePK,
		Inning:               t.key.inning,
		Half:                 t.key.half,
		BattingTeamID:        teams[side],
		Runs:                 t.runs,
		Hits:                 t.hits,
		Errors:               t.errors,
		LeftOnBase:           bases.Count(),
		BattingTeamScore:     score[side],
		BattingTeamScoreDiff: score[side] - score[side.Opponent()],
	}
}

// ComebackHalves returns the halves in which the eventual winner batted from
// behind into the lead.
func ComebackHalves(game *store.Game, lines []*store.Linescore) []*store.Linescore {
	winner := game.WinningTeamID()
	if winner == 0 {
		return nil
	}
	var out []*store.Linescore
	for _, l := range lines {
		if l.BattingTeamID == winner && l.DiffBefore() < 0 && l.BattingTeamScoreDiff > 0 {
			out = append(out, l)
		}
	}
	return out
}

// LargestDeficit is the worst differential a team faced at any half-inning
// boundary, or 0 if it never trailed.
func LargestDeficit(teamID int, lines []*store.Linescore) int {
	worst := 0
	for _, l := range lines {
		diff := l.BattingTeamScoreDiff
		if l.BattingTeamID != teamID {
			diff = l.OpponentDiff()
		}
		if before := l.DiffBefore(); l.BattingTeamID == teamID && before < worst {
			worst = before
		}
		if diff < worst {
			worst = diff
		}
	}
	return worst
}
