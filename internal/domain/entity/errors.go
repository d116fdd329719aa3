package entity

import "errors"

var (
	// ErrValidation is returned when input is malformed; no mutation has occurred.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a batch or session state change is not on the allow-list.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrDuplicateBatch is returned when a non-terminal batch already exists for (business, week, year).
	ErrDuplicateBatch = errors.New("duplicate batch for business week")

	// ErrDuplicateSession is returned when a non-terminal session already exists for the batch.
	ErrDuplicateSession = errors.New("active session already exists for batch")

	// ErrTransactionAlreadyVerified is returned when a result already exists for (session, transaction).
	ErrTransactionAlreadyVerified = errors.New("transaction already verified")

	// ErrConcurrentModification is returned when an optimistic precondition fails on update.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDeadlinePassed is returned when an operation is attempted after the session deadline.
	ErrDeadlinePassed = errors.New("session deadline has passed")

	// ErrTooCloseToDeadline is returned when pausing is attempted inside the pause cutoff window.
	ErrTooCloseToDeadline = errors.New("too close to deadline")

	// ErrAssessmentUnavailable indicates the advisory risk assessment could not be obtained.
	// It is never surfaced as a verification failure; callers fall back to rule-based scoring.
	ErrAssessmentUnavailable = errors.New("risk assessment unavailable")

	// ErrInvalidWeek is returned when the week number exceeds the ISO week count for the year.
	ErrInvalidWeek = errors.New("invalid ISO week for year")

	// ErrFutureBatch is returned when the batch week is more than one ISO week ahead of now.
	ErrFutureBatch = errors.New("batch week too far in the future")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned when the actor does not own the business.
	ErrUnauthorized = errors.New("actor not authorized for business")
)
