package domain

import "errors"

// Domain errors returned by the engine and repository implementations.

var (
	// ErrRunActive indicates another run currently holds the in-process or
	// cross-process run session.
	ErrRunActive = errors.New("a scheduler run is already active")

	// ErrTemplateNotFound indicates the requested template does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrSessionNotHeld indicates a release or heartbeat for a session this
	// process does not hold.
	ErrSessionNotHeld = errors.New("run session not held by this process")

	// ErrNoWeekday indicates a monthly template with an empty day-of-week
	// flag set. The candidate is recorded as an Error audit row.
	ErrNoWeekday = errors.New("monthly template has no weekday flag")
)
