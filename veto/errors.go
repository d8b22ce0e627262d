package veto

import "errors"

var (
	ErrInvalidMapCount  = errors.New("veto needs at least 2 maps")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrTurnSync         = errors.New("turn pointer out of sync with action log")
	ErrLogIntegrity     = errors.New("veto action log is inconsistent")
	ErrSessionCompleted = errors.New("veto session already completed")
	ErrStalePosition    = errors.New("action targets a position that is no longer current")
	ErrMapNotInPool     = errors.New("map is not in the session pool")
	ErrMapUnavailable   = errors.New("map already banned")
	ErrSideRequired     = errors.New("side choice required for the final map")
)
