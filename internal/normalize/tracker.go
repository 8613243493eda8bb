package normalize

import (
	"sort"

	"github.com/fortuna/diamond/internal/baseball"
	"github.com/fortuna/diamond/internal/feed"
)

// Bases is base occupancy: runner ids on 1B, 2B and 3B, zero when empty.
// It is a value; every update returns a new Bases.
type Bases [3]int64

func slot(b baseball.Base) int {
	switch b {
	case baseball.BaseFirst:
		return 0
	case baseball.BaseSecond:
		return 1
	case baseball.BaseThird:
		return 2
	}
	return -1
}

var slotBases = [3]baseball.Base{baseball.BaseFirst, baseball.BaseSecond, baseball.BaseThird}

// At returns the runner on a base, or 0.
func (b Bases) At(base baseball.Base) int64 {
	if i := slot(base); i >= 0 {
		return b[i]
	}
	return 0
}

// Find returns the base a runner occupies, or BaseNone.
func (b Bases) Find(runnerID int64) baseball.Base {
	if runnerID == 0 {
		return baseball.BaseNone
	}
	for i, id := range b {
		if id == runnerID {
			return slotBases[i]
		}
	}
	return baseball.BaseNone
}

// With returns a copy with runnerID on base. Non-occupiable bases are ignored.
func (b Bases) With(base baseball.Base, runnerID int64) Bases {
	if i := slot(base); i >= 0 {
		b[i] = runnerID
	}
	return b
}

// Without returns a copy with runnerID removed from whichever base it holds.
func (b Bases) Without(runnerID int64) Bases {
	for i, id := range b {
		if id == runnerID {
			b[i] = 0
		}
	}
	return b
}

// Count is the number of occupied bases.
func (b Bases) Count() int {
	n := 0
	for _, id := range b {
		if id != 0 {
			n++
		}
	}
	return n
}

// RISP reports a runner on second or third.
func (b Bases) RISP() bool {
	return b[1] != 0 || b[2] != 0
}

// movement is every segment for one runner within one (atBatIndex, playIndex).
type movement struct {
	runnerID   int64
	runnerName string
	segments   []feed.RunnerSegment
}

// playGroup is one play within an at-bat.
type playGroup struct {
	playIndex int
	movements []*movement
}

// groupRunners splits an at-bat's runner segments into plays ordered by
// playIndex. Runners keep the order in which they first appear.
func groupRunners(segments []feed.RunnerSegment) []playGroup {
	byIndex := make(map[int]*playGroup)
	var order []int

	for _, seg := range segments {
		g, ok := byIndex[seg.PlayIndex]
		if !ok {
			g = &playGroup{playIndex: seg.PlayIndex}
			byIndex[seg.PlayIndex] = g
			order = append(order, seg.PlayIndex)
		}

		var m *movement
		for _, existing := range g.movements {
			if existing.runnerID == seg.RunnerID {
				m = existing
				break
			}
		}
		if m == nil {
			m = &movement{runnerID: seg.RunnerID}
			g.movements = append(g.movements, m)
		}
		if m.runnerName == "" {
			m.runnerName = seg.RunnerName
		}
		m.segments = append(m.segments, seg)
	}

	sort.Ints(order)
	groups := make([]playGroup, 0, len(order))
	for _, idx := range order {
		groups = append(groups, *byIndex[idx])
	}
	return groups
}

// resolved is a movement placed against tracked occupancy.
type resolved struct {
	*movement
	start      baseball.Base
	end        baseball.Base
	reached    baseball.Base
	position   baseball.Base
	isOut      bool
	bestEffort bool
}

// placement describes the game context needed to recognize runners that
// legitimately appear without having batted, such as the automatic runner.
type placement struct {
	batterID    int64
	extraInning bool
}

// resolveStart finds where a runner was before the play. Runners missing from
// occupancy fall back to the base reported by the source and are flagged.
func resolveStart(bases Bases, m *movement, pc placement) (baseball.Base, bool) {
	if base := bases.Find(m.runnerID); base != baseball.BaseNone {
		return base, false
	}
	first := m.segments[0]
	if m.runnerID == pc.batterID {
		return baseball.BaseBatter, false
	}

	raw := baseball.ParseBase(first.OriginBase)
	if raw == baseball.BaseNone {
		raw = baseball.ParseBase(first.StartBase)
	}
	if raw == baseball.BaseBatter {
		return raw, true
	}
	if !raw.Occupiable() {
		return baseball.BaseNone, true
	}

	placed := baseball.ParseMovementReason(first.MovementReason) == baseball.ReasonRunnerPlaced ||
		(pc.extraInning && raw == baseball.BaseSecond)
	if placed && bases.At(raw) == 0 {
		return raw, false
	}
	return raw, true
}

// resolveMovement derives start, end and reached bases for one runner.
func resolveMovement(bases Bases, m *movement, pc placement) resolved {
	r := resolved{movement: m}
	r.start, r.bestEffort = resolveStart(bases, m, pc)

	var lastSafe *feed.RunnerSegment
	for i := range m.segments {
		seg := &m.segments[i]
		if seg.IsOut {
			r.isOut = true
		} else {
			lastSafe = seg
		}
	}

	last := m.segments[len(m.segments)-1]
	if last.IsOut {
		r.end = baseball.ParseBase(last.OutBase)
		if r.end == baseball.BaseNone {
			r.end = baseball.ParseBase(last.EndBase)
		}
	} else {
		r.end = baseball.ParseBase(last.EndBase)
		r.position = r.end
	}

	if lastSafe != nil {
		r.reached = baseball.ParseBase(lastSafe.EndBase)
	}

	if !r.isOut {
		switch {
		case r.reached == baseball.BaseNone:
			r.bestEffort = true
		case r.start.Known() && r.reached.Order() < r.start.Order() && !allowsRegression(m):
			r.reached = baseball.BaseNone
			r.bestEffort = true
		}
	}

	return r
}

func allowsRegression(m *movement) bool {
	for _, seg := range m.segments {
		if baseball.ParseMovementReason(seg.MovementReason).AllowsRegression() {
			return true
		}
	}
	return false
}

// advance applies one play's movements. Every mover is lifted first and safe
// runners are then set down, so chained advances never collide. A best-effort
// mover whose start came from the feed evicts whoever the tracker still has
// on that base, so the stale runner does not outlive the play.
func advance(bases Bases, moves []resolved) Bases {
	next := bases
	for _, mv := range moves {
		next = next.Without(mv.runnerID)
	}
	for _, mv := range moves {
		if mv.bestEffort && mv.start.Occupiable() {
			next = next.With(mv.start, 0)
		}
	}
	for _, mv := range moves {
		if !mv.isOut && mv.position.Occupiable() {
			next = next.With(mv.position, mv.runnerID)
		}
	}
	return next
}
