package workqueue

import "errors"

var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("queue stopped")
)
