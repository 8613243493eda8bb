package normalize

import (
	"github.com/fortuna/diamond/internal/baseball"
	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

// State is everything carried from one play to the next within a game.
type State struct {
	Bases Bases
	Score Scoreboard
	tally *halfTally
}

// gameContext is fixed for the whole game.
type gameContext struct {
	gamePK           int64
	teams            [2]int
	scheduledInnings int
	policy           RISPPolicy
}

// step folds one at-bat into the state. It returns the new state, the
// linescore row of a half-inning the play closed (or nil), and the runner rows.
func (gc *gameContext) step(st State, play *feed.Play) (State, *store.Linescore, []*store.RunnerPlay) {
	key := halfKey{inning: play.Inning, half: baseball.HalfFromTop(play.IsTopInning)}

	var closed *store.Linescore
	if st.tally == nil || st.tally.key != key {
		if st.tally != nil {
			closed = st.tally.close(gc.gamePK, gc.teams, st.Score, st.Bases)
		}
		st.Bases = Bases{}
		st.tally = &halfTally{key: key}
	} else {
		tally := *st.tally
		st.tally = &tally
	}

	pc := placement{
		batterID:    play.BatterID,
		extraInning: play.Inning > gc.scheduledInnings,
	}

	var rows []*store.RunnerPlay
	for _, group := range groupRunners(play.Runners) {
		snapshot := st.Bases
		moves := make([]resolved, 0, len(group.movements))
		for _, m := range group.movements {
			moves = append(moves, resolveMovement(snapshot, m, pc))
		}
		for _, mv := range moves {
			rows = append(rows, classify(gc.gamePK, play, group.playIndex, mv, snapshot, gc.policy))
		}
		st.Bases = advance(snapshot, moves)
	}

	st.tally.addPlay(play)
	scored := st.tally.addRows(rows)
	st.Score[key.half.BattingSide()] += scored

	return st, closed, rows
}

// finish closes the half-inning in progress, if any.
func (gc *gameContext) finish(st State) *store.Linescore {
	if st.tally == nil {
		return nil
	}
	return st.tally.close(gc.gamePK, gc.teams, st.Score, st.Bases)
}

type runnerKey struct {
	atBat  int
	play   int
	runner int64
}

// Normalize builds the three row sets for one game record. Plays are folded
// strictly in feed order.
func Normalize(rec *feed.Record, policy RISPPolicy) (*store.GameRows, error) {
	game, err := BuildGame(rec)
	if err != nil {
		return nil, err
	}

	gc := &gameContext{
		gamePK:           game.GamePK,
		teams:            [2]int{baseball.SideAway: game.AwayTeamID, baseball.SideHome: game.HomeTeamID},
		scheduledInnings: game.ScheduledInnings,
		policy:           policy,
	}

	out := &store.GameRows{Game: game}
	halves := make(map[halfKey]bool)
	keys := make(map[runnerKey]bool)

	var st State
	for _, play := range rec.Plays() {
		next, closed, rows := gc.step(st, &play)
		if closed != nil {
			out.Linescores = append(out.Linescores, closed)
		}

		key := next.tally.key
		if closed != nil || st.tally == nil {
			if halves[key] {
				return nil, malformed(game.GamePK, "half-inning %d %s resumes after it closed", key.inning, key.half)
			}
			halves[key] = true
		}

		for _, r := range rows {
			k := runnerKey{r.AtBatIndex, r.PlayIndex, r.RunnerID}
			if keys[k] {
				return nil, malformed(game.GamePK, "duplicate runner play at-bat %d play %d runner %d", k.atBat, k.play, k.runner)
			}
			keys[k] = true
		}
		out.RunnerPlays = append(out.RunnerPlays, rows...)
		st = next
	}
	if last := gc.finish(st); last != nil {
		out.Linescores = append(out.Linescores, last)
	}

	return out, nil
}
