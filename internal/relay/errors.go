package relay

import "errors"

var (
	ErrHubAlreadyRunning = errors.New("hub already running")
	ErrHubNotRunning     = errors.New("hub not running")
)
