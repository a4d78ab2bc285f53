package memory

import "errors"

var (
	// ErrInvalidUserID is returned when a user ID cannot be used as a
	// storage path component.
	ErrInvalidUserID = errors.New("memory: invalid user id")

	// ErrTodoNotFound is returned when no todo matches the given ID.
	ErrTodoNotFound = errors.New("memory: todo not found")

	// ErrReminderNotFound is returned when no reminder matches the given ID.
	ErrReminderNotFound = errors.New("memory: reminder not found")

	// ErrFollowupNotFound is returned when no followup matches the given ID.
	ErrFollowupNotFound = errors.New("memory: followup not found")

	// ErrUnparsableTime is returned when a datetime string matches none of
	// the accepted layouts.
	ErrUnparsableTime = errors.New("memory: unrecognized datetime format")
)
