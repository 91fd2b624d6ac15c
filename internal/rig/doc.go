// Package rig is the HTTP client for the experiment rig's JSON API.
//
// The API is a set of GET modules under a common base URL:
//
//	identify   rig identity, sensor and actuator names, running time
//	sensors    sample data for one sensor (id, start_time, end_time, format)
//	actuators  sample data for one actuator
//	control    experiment control (identify, start, stop, set, end)
//	pin        GPIO/PWM/ADC pin test
//	errorlog   plain-text error log
//
// # Errors
//
// Failures fall into three classes, all checkable with errors.Is:
//   - ErrTransport: no usable HTTP response (network, timeout, 5xx)
//   - ErrAPI: the reply carried a negative status; use errors.As with
//     *APIError for the code and description
//   - ErrMalformed: the body could not be decoded
package rig
