// Package api implements the console's HTTP REST API and WebSocket server.
//
// This package provides:
//   - REST endpoints for the device registry, plot sessions, experiment
//     control, the error log, pin testing and data export
//   - WebSocket hub pushing plot, control, error log and poller events
//   - JSON and Prometheus metrics
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server is a thin layer over the domain packages. Long-running work
// (plot sessions, pin watchers) is started under the server's own context
// rather than the request's, so it keeps running after the response and
// stops when the server is closed.
//
// Rig failures surface as 502 responses: the console is healthy, the rig
// behind it is not.
//
// # WebSocket channels
//
//	plot.updated      every redraw of the active plot
//	control.changed   experiment state transitions
//	errorlog.updated  error log text changes
//	poller.status     plot session lifecycle
//	pins.reading      readings from watched input pins
//	overview.updated  every refresh of the strain-gauge overview
package api
