// Package chart turns plot series into something a user can look at.
//
// Two renderers are provided. ImageRenderer draws PNG and SVG images with
// go-chart and keeps a single chart handle for its lifetime. HubRenderer
// pushes the raw series to WebSocket subscribers so the browser can draw
// them itself. Multi combines renderers so one poller redraw reaches both.
package chart
