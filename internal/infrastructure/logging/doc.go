// Package logging provides structured logging for rigdash.
//
// It wraps log/slog so every entry carries service and version fields.
// JSON is used for unattended deployments; the text format is rendered with
// tint for people watching a session on a terminal.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	  color: false       # ANSI colours for text format
//
// Never log the rig control key.
package logging
