package device

import "errors"

// Domain errors for the device package.
var (
	// ErrDeviceNotFound is returned when a device ref is not registered.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDiscoveryFailed wraps any failure to identify the rig.
	// The registry is left unchanged when it is returned.
	ErrDiscoveryFailed = errors.New("device: discovery failed")

	// ErrInvalidRef is returned when a "kind/id" string cannot be parsed.
	ErrInvalidRef = errors.New("device: invalid reference")
)
