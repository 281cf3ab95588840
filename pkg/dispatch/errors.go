package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running dispatcher.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrNotRunning is returned when actions are submitted before Start.
	ErrNotRunning = errors.New("dispatcher is not running")

	// ErrDuplicateRequest is returned when a request ID is already pending.
	ErrDuplicateRequest = errors.New("request id already pending")
)
