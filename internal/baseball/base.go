// Package baseball holds the shared vocabulary of the normalized tables:
// bases, half-innings and the tag sets used for event and movement columns.
package baseball

import (
	"database/sql/driver"
	"strings"
)

// Base is a position a runner can start from or reach during a play.
// The zero value means "unknown" and is stored as NULL.
type Base string

const (
	BaseNone   Base = ""
	BaseBatter Base = "B"
	BaseFirst  Base = "1B"
	BaseSecond Base = "2B"
	BaseThird  Base = "3B"
	BaseHome   Base = "HM"
)

// ParseBase maps a feed base value onto the normalized domain.
// The feed uses "score" and "4B" for home plate and null for the batter's box.
func ParseBase(raw string) Base {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1B", "FIRST":
		return BaseFirst
	case "2B", "SECOND":
		return BaseSecond
	case "3B", "THIRD":
		return BaseThird
	case "HM", "4B", "SCORE", "HOME":
		return BaseHome
	case "B", "BATTER":
		return BaseBatter
	default:
		return BaseNone
	}
}

// Order returns the position of the base along the basepaths (B=0 .. HM=4),
// or -1 for an unknown base.
func (b Base) Order() int {
	switch b {
	case BaseBatter:
		return 0
	case BaseFirst:
		return 1
	case BaseSecond:
		return 2
	case BaseThird:
		return 3
	case BaseHome:
		return 4
	default:
		return -1
	}
}

// Occupiable reports whether a runner can stand on the base between plays.
func (b Base) Occupiable() bool {
	return b == BaseFirst || b == BaseSecond || b == BaseThird
}

// ScoringPosition reports whether the base is second or third.
func (b Base) ScoringPosition() bool {
	return b == BaseSecond || b == BaseThird
}

// Known reports whether the base carries a value.
func (b Base) Known() bool {
	return b != BaseNone
}

// Value implements driver.Valuer.
func (b Base) Value() (driver.Value, error) {
	if b == BaseNone {
		return nil, nil
	}
	return string(b), nil
}
