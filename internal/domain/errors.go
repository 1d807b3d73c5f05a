package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller is unauthenticated or does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates a referenced entity is missing or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument wraps request validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidStartOption is returned by publish when the start option cannot be honored.
	ErrInvalidStartOption = errors.New("invalid start option")
	// ErrAlreadyDeleted guards against double soft-delete.
	ErrAlreadyDeleted = errors.New("already deleted")
	// ErrAlreadyFinished guards against finishing an attempt or test twice.
	ErrAlreadyFinished = errors.New("already finished")
	// ErrTestFinished rejects participant activity on a test that has ended.
	ErrTestFinished = errors.New("test has ended")
	// ErrTestNotPublished rejects participant activity before the test is live.
	ErrTestNotPublished = errors.New("test is not published")

	// ErrJobNotFound is returned by schedulers for unknown job ids.
	ErrJobNotFound = errors.New("scheduled job not found")
	// ErrJobAlreadyFired is returned when cancelling a job that already ran or is running.
	ErrJobAlreadyFired = errors.New("scheduled job already fired")
)
