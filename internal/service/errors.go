package service

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNotCoach        = errors.New("user is not a coach")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrDateInPast      = errors.New("date is in the past")
	ErrNotBlocked      = errors.New("date is not blocked")
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another user")
	ErrInvalidSeries   = errors.New("invalid recurring series")

	ErrTimezoneConflict = errors.New("timezone change puts two client sessions on one day")
)
