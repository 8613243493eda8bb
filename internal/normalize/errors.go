package normalize

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedGameRecord means required top-level fields are missing; the game is skipped.
	ErrMalformedGameRecord = errors.New("malformed game record")
	// ErrInconsistentRunnerState marks a runner movement that does not agree with tracked occupancy.
	// It is recovered locally with a best-effort row and never fails a game.
	ErrInconsistentRunnerState = errors.New("inconsistent runner state")
	// ErrSinkWrite means the storage replace for a game failed.
	ErrSinkWrite = errors.New("sink write failure")
	// ErrFetch means the game record could not be obtained from the source.
	ErrFetch = errors.New("fetch failure")
)

// GameError is the reason a game resolved as failed.
type GameError struct {
	GamePK int64
	Kind   error
	Err    error
}

func (e *GameError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("game %d: %v", e.GamePK, e.Kind)
	}
	return fmt.Sprintf("game %d: %v: %v", e.GamePK, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *GameError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason returns the short taxonomy name for the failure.
func (e *GameError) Reason() string {
	switch e.Kind {
	case ErrMalformedGameRecord:
		return "MalformedGameRecord"
	case ErrSinkWrite:
		return "SinkWriteFailure"
	case ErrFetch:
		return "FetchFailure"
	case ErrInconsistentRunnerState:
		return "InconsistentRunnerState"
	default:
		return "Unknown"
	}
}

// newGameError wraps err unless it already carries a GameError.
func newGameError(gamePK int64, kind, err error) *GameError {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}
	return &GameError{GamePK: gamePK, Kind: kind, Err: err}
}

func malformed(gamePK int64, format string, args ...interface{}) *GameError {
	return &GameError{GamePK: gamePK, Kind: ErrMalformedGameRecord, Err: fmt.Errorf(format, args...)}
}

// Reason extracts the taxonomy name from an outcome error.
func Reason(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Reason()
	}
	if err == nil {
		return ""
	}
	return "Unknown"
}
