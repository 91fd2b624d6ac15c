package tsdb

import "errors"

// Sentinel errors for time-series database operations.
var (
	ErrNotConnected     = errors.New("tsdb: not connected")
	ErrConnectionFailed = errors.New("tsdb: connection failed")
	ErrWriteFailed      = errors.New("tsdb: write failed")
	ErrDisabled         = errors.New("tsdb: disabled in configuration")
	ErrInvalidQuery     = errors.New("tsdb: invalid query")
)
