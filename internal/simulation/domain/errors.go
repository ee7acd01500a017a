package domain

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid simulation input")
	ErrAttemptNotFound = errors.New("simulation attempt not found")
	ErrNotDraft        = errors.New("simulation attempt is not a draft")
	ErrNotApproved     = errors.New("simulation attempt is not approved")
)
