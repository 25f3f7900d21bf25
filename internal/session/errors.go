package session

import "github.com/pkg/errors"

var (
	// ErrInvalidInput reports malformed caller input; session state is left unchanged.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState reports an operation the current phase does not allow.
	ErrInvalidState = errors.New("invalid state")

	// errTimedOut is returned by State.answer when the timer got there first.
	errTimedOut = errors.New("time expired")
)
