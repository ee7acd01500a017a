package domain

import "errors"

var (
	ErrCaseNotFound       = errors.New("case not found")
	ErrForbidden          = errors.New("action not permitted for role in current state")
	ErrInvalidTransition  = errors.New("action not defined from current state")
	ErrLockConflict       = errors.New("case is locked by another actor")
	ErrAlreadyLocked      = errors.New("case already taken")
	ErrNotOwner           = errors.New("actor does not own the case lock")
	ErrSimulationRequired = errors.New("no approved simulation attempt for case")
	ErrVersionConflict    = errors.New("case was modified concurrently")
)
