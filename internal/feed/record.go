package feed

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is one raw live-feed document (/api/v1.1/game/{gamePk}/feed/live).
type Record struct {
	raw []byte
}

// ParseRecord wraps raw feed JSON. It only checks that the payload is valid
// JSON; field-level validation belongs to the normalizer.
func ParseRecord(data []byte) (*Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid feed JSON (%d bytes)", len(data))
	}
	return &Record{raw: data}, nil
}

// Raw returns the original payload.
func (r *Record) Raw() []byte {
	return r.raw
}

// Get reads a gjson path from the document.
func (r *Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// GamePK returns the game key, or 0 when absent.
func (r *Record) GamePK() int64 {
	if pk := r.Get("gamePk"); pk.Exists() {
		return pk.Int()
	}
	return r.Get("gameData.game.pk").Int()
}

// IsFinal reports whether the game has finished.
func (r *Record) IsFinal() bool {
	return r.Get("gameData.status.abstractGameState").String() == "Final"
}

// Plays returns the plate appearances in feed order.
func (r *Record) Plays() []Play {
	var plays []Play
	r.Get("liveData.plays.allPlays").ForEach(func(_, p gjson.Result) bool {
		plays = append(plays, parsePlay(p))
		return true
	})
	return plays
}

func parsePlay(p gjson.Result) Play {
	about := p.Get("about")
	play := Play{
		AtBatIndex:      int(about.Get("atBatIndex").Int()),
		Inning:          int(about.Get("inning").Int()),
		IsTopInning:     about.Get("isTopInning").Bool(),
		BatterID:        p.Get("matchup.batter.id").Int(),
		ResultEventType: p.Get("result.eventType").String(),
		ResultEvent:     p.Get("result.event").String(),
	}
	if half := about.Get("halfInning"); !about.Get("isTopInning").Exists() && half.Exists() {
		play.IsTopInning = half.String() == "top"
	}

	p.Get("runners").ForEach(func(_, r gjson.Result) bool {
		play.Runners = append(play.Runners, parseRunner(r))
		return true
	})

	p.Get("playEvents").ForEach(func(_, ev gjson.Result) bool {
		play.PlayEvents = append(play.PlayEvents, PlayEvent{
			Index:  int(ev.Get("index").Int()),
			PlayID: ev.Get("playId").String(),
		})
		return true
	})

	return play
}

func parseRunner(r gjson.Result) RunnerSegment {
	movement := r.Get("movement")
	details := r.Get("details")

	seg := RunnerSegment{
		RunnerID:       details.Get("runner.id").Int(),
		RunnerName:     details.Get("runner.fullName").String(),
		OriginBase:     movement.Get("originBase").String(),
		StartBase:      movement.Get("start").String(),
		EndBase:        movement.Get("end").String(),
		OutBase:        movement.Get("outBase").String(),
		IsOut:          movement.Get("isOut").Bool(),
		EventType:      details.Get("eventType").String(),
		Event:          details.Get("event").String(),
		MovementReason: details.Get("movementReason").String(),
		PlayIndex:      int(details.Get("playIndex").Int()),
	}

	r.Get("credits").ForEach(func(_, c gjson.Result) bool {
		seg.Credits = append(seg.Credits, Credit{
			PlayerID: c.Get("player.id").Int(),
			Credit:   c.Get("credit").String(),
		})
		return true
	})

	return seg
}
