package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

const (
	awayTeam = 147
	homeTeam = 111
)

// fxGame describes a live feed document for tests.
type fxGame struct {
	pk        int64
	awayRuns  interface{}
	homeRuns  interface{}
	innings   int
	gameType  string
	plays     []fxPlay
	skipTeams bool
}

type fxPlay struct {
	atBat   int
	inning  int
	top     bool
	batter  int64
	result  string
	runners []fxRunner
	events  []string
}

type fxRunner struct {
	id        int64
	name      string
	start     string
	end       string
	outBase   string
	out       bool
	eventType string
	reason    string
	playIndex int
	credits   []fxCredit
}

type fxCredit struct {
	fielder int64
	credit  string
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (g fxGame) json(t *testing.T) []byte {
	t.Helper()

	var plays []interface{}
	for _, p := range g.plays {
		var runners []interface{}
		for _, r := range p.runners {
			var credits []interface{}
			for _, c := range r.credits {
				credits = append(credits, map[string]interface{}{
					"player": map[string]interface{}{"id": c.fielder},
					"credit": c.credit,
				})
			}
			runners = append(runners, map[string]interface{}{
				"movement": map[string]interface{}{
					"originBase": nullable(r.start),
					"start":      nullable(r.start),
					"end":        nullable(r.end),
					"outBase":    nullable(r.outBase),
					"isOut":      r.out,
				},
				"details": map[string]interface{}{
					"runner":         map[string]interface{}{"id": r.id, "fullName": r.name},
					"eventType":      nullable(r.eventType),
					"movementReason": nullable(r.reason),
					"playIndex":      r.playIndex,
				},
				"credits": credits,
			})
		}
		var events []interface{}
		for i, id := range p.events {
			events = append(events, map[string]interface{}{"index": i, "playId": id})
		}
		plays = append(plays, map[string]interface{}{
			"about":      map[string]interface{}{"atBatIndex": p.atBat, "inning": p.inning, "isTopInning": p.top},
			"result":     map[string]interface{}{"eventType": p.result},
			"matchup":    map[string]interface{}{"batter": map[string]interface{}{"id": p.batter}},
			"runners":    runners,
			"playEvents": events,
		})
	}

	teams := map[string]interface{}{}
	if !g.skipTeams {
		teams = map[string]interface{}{
			"away": map[string]interface{}{"id": awayTeam, "name": "Boston Red Sox", "sport": map[string]interface{}{"id": 1}},
			"home": map[string]interface{}{"id": homeTeam, "name": "Chicago White Sox", "sport": map[string]interface{}{"id": 1}},
		}
	}
	lineTeams := map[string]interface{}{"away": map[string]interface{}{}, "home": map[string]interface{}{}}
	if g.awayRuns != nil {
		lineTeams["away"] = map[string]interface{}{"runs": g.awayRuns}
	}
	if g.homeRuns != nil {
		lineTeams["home"] = map[string]interface{}{"runs": g.homeRuns}
	}
	linescore := map[string]interface{}{"teams": lineTeams}
	if g.innings > 0 {
		linescore["scheduledInnings"] = g.innings
	}
	gameType := g.gameType
	if gameType == "" {
		gameType = "R"
	}

	doc := map[string]interface{}{
		"gamePk": g.pk,
		"gameData": map[string]interface{}{
			"game":     map[string]interface{}{"pk": g.pk, "type": gameType},
			"datetime": map[string]interface{}{"dateTime": "2024-06-01T23:10:00Z", "officialDate": "2024-06-01"},
			"status":   map[string]interface{}{"abstractGameState": "Final", "codedGameState": "F", "detailedState": "Final"},
			"teams":    teams,
			"venue":    map[string]interface{}{"id": 4, "name": "Rate Field"},
		},
		"liveData": map[string]interface{}{
			"linescore": linescore,
			"plays":     map[string]interface{}{"allPlays": plays},
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func (g fxGame) record(t *testing.T) *feed.Record {
	t.Helper()
	rec, err := feed.ParseRecord(g.json(t))
	require.NoError(t, err)
	return rec
}

// batterOut is a batter retired before reaching first.
func batterOut(id int64, eventType string, playIndex int) fxRunner {
	return fxRunner{id: id, outBase: "1B", out: true, eventType: eventType, playIndex: playIndex}
}

// comebackGame: the away team scores 2 in the top of the first, the home
// team answers with 3 in the bottom and wins 3-2.
func comebackGame(pk int64) fxGame {
	return fxGame{
		pk: pk, awayRuns: 2, homeRuns: "3",
		plays: []fxPlay{
			{atBat: 0, inning: 1, top: true, batter: 11, result: "single", runners: []fxRunner{
				{id: 11, name: "Away One", end: "1B", eventType: "single"},
			}},
			{atBat: 1, inning: 1, top: true, batter: 12, result: "home_run", runners: []fxRunner{
				{id: 11, start: "1B", end: "score", eventType: "home_run"},
				{id: 12, end: "score", eventType: "home_run"},
			}},
			{atBat: 2, inning: 1, top: true, batter: 13, result: "strikeout", runners: []fxRunner{
				batterOut(13, "strikeout", 0),
			}},
			{atBat: 3, inning: 1, top: false, batter: 21, result: "single", runners: []fxRunner{
				{id: 21, end: "1B", eventType: "single"},
			}},
			{atBat: 4, inning: 1, top: false, batter: 22, result: "walk", runners: []fxRunner{
				{id: 21, start: "1B", end: "2B", eventType: "walk", reason: "r_adv_force"},
				{id: 22, end: "1B", eventType: "walk"},
			}},
			{atBat: 5, inning: 1, top: false, batter: 23, result: "home_run", runners: []fxRunner{
				{id: 21, start: "2B", end: "score", eventType: "home_run"},
				{id: 22, start: "1B", end: "score", eventType: "home_run"},
				{id: 23, end: "score", eventType: "home_run"},
			}},
		},
	}
}

// stealGame: a runner doubles, then steals third during the next at-bat.
func stealGame(pk int64) fxGame {
	return fxGame{
		pk: pk, awayRuns: 0, homeRuns: 0,
		plays: []fxPlay{
			{atBat: 0, inning: 1, top: true, batter: 31, result: "double", runners: []fxRunner{
				{id: 31, name: "Speedy", end: "2B", eventType: "double"},
			}},
			{atBat: 1, inning: 1, top: true, batter: 32, result: "strikeout", events: []string{"e0", "e1", "e2", "e3", "e4"}, runners: []fxRunner{
				{id: 31, name: "Speedy", start: "2B", end: "3B", eventType: "stolen_base_3b", reason: "r_stolen_base_3b", playIndex: 2},
				batterOut(32, "strikeout", 4),
			}},
		},
	}
}

func findRow(rows []*store.RunnerPlay, atBat, playIndex int, runner int64) *store.RunnerPlay {
	for _, r := range rows {
		if r.AtBatIndex == atBat && r.PlayIndex == playIndex && r.RunnerID == runner {
			return r
		}
	}
	return nil
}
