package transport

import "errors"

var (
	ErrConnection       = errors.New("connection failed")
	ErrAlreadyConnected = errors.New("already connected")
)
