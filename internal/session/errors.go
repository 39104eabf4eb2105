package session

import "errors"

var (
	ErrAlreadyInSession = errors.New("already in a session, leave it first")
	ErrNotInSession     = errors.New("not in a session")
	ErrInvalidUsername  = errors.New("username must be 1-100 characters")
)
