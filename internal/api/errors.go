package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/export"
	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/poller"
	"github.com/nerrad567/rigdash/internal/rig"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeRigRejected    = "rig_rejected"
	ErrCodeRigUnreachable = "rig_unreachable"
	ErrCodeUpstream       = "upstream_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 for a feature this console was started
// without.
func writeUnavailable(w http.ResponseWriter, feature string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, feature+" is not configured")
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// writeDomainError maps an error from the domain packages to a response.
// Rig failures are 502 since the console itself is working.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, pintest.ErrUnknownPin),
		errors.Is(err, chart.ErrNoImage):
		writeNotFound(w, err.Error())

	case errors.Is(err, device.ErrInvalidRef),
		errors.Is(err, poller.ErrEmptySelection),
		errors.Is(err, pintest.ErrInvalidInput),
		errors.Is(err, pintest.ErrWrongType),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrNoDevices):
		writeBadRequest(w, err.Error())

	case errors.Is(err, poller.ErrAlreadyRunning),
		errors.Is(err, control.ErrSessionHeld),
		errors.Is(err, control.ErrNoSession),
		errors.Is(err, rig.ErrNoKey):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, rig.ErrAPI):
		writeError(w, http.StatusBadGateway, ErrCodeRigRejected, err.Error())

	case errors.Is(err, rig.ErrTransport),
		errors.Is(err, rig.ErrMalformed),
		errors.Is(err, pintest.ErrUnexpectedReply),
		errors.Is(err, device.ErrDiscoveryFailed):
		writeError(w, http.StatusBadGateway, ErrCodeRigUnreachable, err.Error())

	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
