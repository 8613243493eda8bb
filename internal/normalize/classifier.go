package normalize

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fortuna/diamond/internal/baseball"
	"github.com/fortuna/diamond/internal/feed"
	"github.com/fortuna/diamond/internal/store"
)

// RISPPolicy selects how is_risp is computed for runner rows.
type RISPPolicy string

const (
	// RISPPerPlay copies the occupancy before the play to every row of that play.
	RISPPerPlay RISPPolicy = "per_play"
	// RISPPerRunner marks only rows whose runner started on second or third.
	RISPPerRunner RISPPolicy = "per_runner"
)

// ParseRISPPolicy reads a policy name. Empty selects RISPPerPlay.
func ParseRISPPolicy(raw string) (RISPPolicy, error) {
	switch RISPPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RISPPerPlay:
		return RISPPerPlay, nil
	case RISPPerRunner:
		return RISPPerRunner, nil
	}
	return "", fmt.Errorf("unknown risp policy %q (want %s or %s)", raw, RISPPerPlay, RISPPerRunner)
}

// classify turns a resolved movement into a runner_play row. snapshot is
// occupancy immediately before the play.
func classify(gamePK int64, play *feed.Play, playIndex int, mv resolved, snapshot Bases, policy RISPPolicy) *store.RunnerPlay {
	row := &store.RunnerPlay{
		GamePK:      gamePK,
		AtBatIndex:  play.AtBatIndex,
		PlayIndex:   playIndex,
		RunnerID:    mv.runnerID,
		StartBase:   mv.start,
		EndBase:     mv.end,
		ReachedBase: mv.reached,
		IsOut:       mv.isOut,
		BestEffort:  mv.bestEffort,
	}
	if mv.runnerName != "" {
		row.RunnerFullName = sql.NullString{String: mv.runnerName, Valid: true}
	}
	if id := play.PlayIDAt(playIndex); id != "" {
		row.PlayID = sql.NullString{String: id, Valid: true}
	}

	resultTag := baseball.ParseEventTag(play.ResultEventType)
	for _, seg := range mv.segments {
		tag := segmentEvent(seg, resultTag)
		row.EventType.Add(tag)
		row.MovementReason.Add(segmentReason(seg, tag, resultTag))
	}

	switch policy {
	case RISPPerRunner:
		row.IsRISP = mv.start.ScoringPosition()
	default:
		row.IsRISP = snapshot.RISP()
	}

	row.IsFirstToThird = isFirstToThird(row.StartBase, row.ReachedBase, row.IsOut)
	row.IsSecondToHome = isSecondToHome(row.StartBase, row.ReachedBase, row.IsOut)
	return row
}

// segmentEvent tags the segment's event, falling back to its display text
// and then to the at-bat result.
func segmentEvent(seg feed.RunnerSegment, resultTag baseball.EventTag) baseball.EventTag {
	if tag := baseball.ParseEventTag(seg.EventType); tag != "" {
		return tag
	}
	if tag := baseball.ParseEventTag(seg.Event); tag != "" {
		return tag
	}
	return resultTag
}

// segmentReason normalizes the movement reason. A segment without one that
// belongs to the batted-ball event moved on the play.
func segmentReason(seg feed.RunnerSegment, tag, resultTag baseball.EventTag) baseball.MovementReason {
	if reason := baseball.ParseMovementReason(seg.MovementReason); reason != "" {
		return reason
	}
	if tag != "" && tag == resultTag {
		return baseball.ReasonOnPlay
	}
	return ""
}

func isFirstToThird(start, reached baseball.Base, out bool) bool {
	return start == baseball.BaseFirst && reached == baseball.BaseThird && !out
}

func isSecondToHome(start, reached baseball.Base, out bool) bool {
	return start == baseball.BaseSecond && reached == baseball.BaseHome && !out
}
