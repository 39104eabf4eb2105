package types

import "errors"

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMissingUserID      = errors.New("message has no sender id")
	ErrInvalidUserID      = errors.New("user ID must be 1-64 characters, alphanumeric plus underscore/hyphen")
	ErrInvalidUsername    = errors.New("username must be 1-100 characters")
)
