package operation

import "errors"

var (
	ErrMalformedOperation = errors.New("malformed operation")
	ErrNegativeOffset     = errors.New("operation offset must be non-negative")
	ErrNonPositiveLength  = errors.New("operation length must be positive")
)
