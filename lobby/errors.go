package lobby

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no session has the given id.
	ErrNotFound = errors.New("session not found")

	// ErrFull is returned when joining a session with no empty seat.
	ErrFull = errors.New("session full")

	// ErrClosed is returned when joining a session that is not open.
	ErrClosed = errors.New("session closed")

	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current status or seating.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotOwner is returned when a non-owner attempts an owner operation.
	ErrNotOwner = fmt.Errorf("%w: not the session owner", ErrInvalidState)

	// ErrBadPassword is returned when the join password does not match.
	ErrBadPassword = errors.New("wrong session password")

	// ErrAlreadySeated is returned when a connection already holds a seat.
	ErrAlreadySeated = errors.New("already seated in a session")

	// ErrNotSeated is returned when a connection holds no seat in the session.
	ErrNotSeated = errors.New("not seated in this session")
)
