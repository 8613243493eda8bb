package feed

// Play is one plate appearance from liveData.plays.allPlays.
type Play struct {
	AtBatIndex      int
	Inning          int
	IsTopInning     bool
	BatterID        int64
	ResultEventType string
	ResultEvent     string
	Runners         []RunnerSegment
	PlayEvents      []PlayEvent
}

// RunnerSegment is one leg of a runner's movement. A runner can have several
// segments within the same play index (e.g. advancing on a throw after a hit).
type RunnerSegment struct {
	RunnerID       int64
	RunnerName     string
	OriginBase     string
	StartBase      string
	EndBase        string
	OutBase        string
	IsOut          bool
	EventType      string
	Event          string
	MovementReason string
	PlayIndex      int
	Credits        []Credit
}

// Credit is a fielding credit attached to a runner segment.
type Credit struct {
	PlayerID int64
	Credit   string
}

// PlayEvent is a pitch or action within a plate appearance.
type PlayEvent struct {
	Index  int
	PlayID string
}

// PlayIDAt returns the playId of the event at the given index, if any.
func (p *Play) PlayIDAt(index int) string {
	for _, ev := range p.PlayEvents {
		if ev.Index == index {
			return ev.PlayID
		}
	}
	return ""
}
