package poller

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a session is running.
	ErrAlreadyRunning = errors.New("poller: already running")

	// ErrEmptySelection is returned when no Y device was selected.
	ErrEmptySelection = errors.New("poller: no devices selected")
)
