package baseball

// Half distinguishes the visiting team's turn at bat from the home team's.
type Half string

const (
	HalfTop    Half = "top"
	HalfBottom Half = "bottom"
)

// HalfFromTop converts the feed's isTopInning flag.
func HalfFromTop(isTop bool) Half {
	if isTop {
		return HalfTop
	}
	return HalfBottom
}

// Order sorts top before bottom within an inning.
func (h Half) Order() int {
	if h == HalfTop {
		return 0
	}
	return 1
}

// Side identifies a team within a game.
type Side int

const (
	SideAway Side = iota
	SideHome
)

// BattingSide returns the team at bat during the half.
func (h Half) BattingSide() Side {
	if h == HalfTop {
		return SideAway
	}
	return SideHome
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideAway {
		return SideHome
	}
	return SideAway
}
