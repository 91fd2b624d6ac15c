package chart

import "errors"

var (
	// ErrInvalidValue is returned when a point is NaN or infinite.
	ErrInvalidValue = errors.New("chart: invalid value")

	// ErrNoImage is returned when nothing drawable has been rendered yet.
	ErrNoImage = errors.New("chart: nothing rendered")
)
