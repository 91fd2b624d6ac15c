package pintest

import "errors"

var (
	// ErrUnknownPin is returned for a pin outside the known lists.
	ErrUnknownPin = errors.New("pintest: unknown pin")

	// ErrInvalidInput is returned for out-of-range PWM settings.
	ErrInvalidInput = errors.New("pintest: invalid input")

	// ErrUnexpectedReply is returned when a read reply cannot be parsed.
	ErrUnexpectedReply = errors.New("pintest: unexpected reply")

	// ErrWrongType is returned when an operation does not apply to the
	// pin type, such as writing to an ADC.
	ErrWrongType = errors.New("pintest: operation not supported for pin type")
)
