package scheduler

import "errors"

var (
	// ErrQueueStopped is returned by Schedule before Start or after Stop.
	ErrQueueStopped = errors.New("reconcile queue is not running")
	// ErrQueueFull means the job was dropped; the sweeper picks the period up later.
	ErrQueueFull          = errors.New("reconcile queue is full")
	ErrInvalidQueueConfig = errors.New("invalid reconcile queue configuration")
)
