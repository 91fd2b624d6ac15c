package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/rig"
)

type acquireRequest struct {
	Experiment string `json:"experiment"`
	Force      bool   `json:"force"`
}

type setActuatorRequest struct {
	ID    *int     `json:"id"`
	Value *float64 `json:"value"`
}

// controlResponse is returned by the control actions. The rig's key stays
// inside the session and is never sent to clients.
type controlResponse struct {
	View control.View `json:"view"`
	Held bool         `json:"held"`
}

func (s *Server) handleGetControl(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"monitor": s.monitor.Snapshot(),
		"held":    s.session.Held(),
	})
}

func (s *Server) handleAcquireControl(w http.ResponseWriter, r *http.Request) {
	var req acquireRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Experiment = strings.TrimSpace(req.Experiment)
	if req.Experiment == "" {
		writeBadRequest(w, "experiment name is required")
		return
	}

	st, err := s.session.Acquire(r.Context(), req.Experiment, req.Force)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondControl(r.Context(), w, st)
}

func (s *Server) handleSetActuator(w http.ResponseWriter, r *http.Request) {
	var req setActuatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == nil || req.Value == nil {
		writeBadRequest(w, "id and value are required")
		return
	}

	st, err := s.session.Set(r.Context(), *req.ID, *req.Value)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondControl(r.Context(), w, st)
}

func (s *Server) handleReleaseControl(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Release(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.pollControl(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"released": true})
}

// handleEmergencyStop needs no key; any console may stop the rig.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.EmergencyStop(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondControl(r.Context(), w, st)
}

// handleControlHistory returns archived state transitions, newest first.
func (s *Server) handleControlHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeUnavailable(w, "control archive")
		return
	}
	transitions, err := s.archive.Transitions(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("reading control archive", "error", err)
		writeInternalError(w, "failed to read archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": transitions,
		"count":       len(transitions),
	})
}

func (s *Server) respondControl(ctx context.Context, w http.ResponseWriter, st *rig.ControlStatus) {
	s.pollControl(ctx)
	writeJSON(w, http.StatusOK, controlResponse{
		View: control.ViewFor(*st),
		Held: s.session.Held(),
	})
}

// pollControl refreshes the monitor after an action so WebSocket clients
// see the transition without waiting for the next poll.
func (s *Server) pollControl(ctx context.Context) {
	if _, err := s.monitor.Poll(ctx); err != nil {
		s.logger.Debug("control refresh after action failed", "error", err)
	}
}
