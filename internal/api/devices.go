package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/infrastructure/tsdb"
	"github.com/nerrad567/rigdash/internal/rig"
)

// handleListDevices returns the registry, optionally filtered by ?kind=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []device.Device
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := rig.Kind(kind)
		if !k.Valid() {
			writeBadRequest(w, "unknown device kind: "+kind)
			return
		}
		devices = s.registry.ListByKind(k)
	} else {
		devices = s.registry.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
		"stats":   s.registry.GetStats(),
	})
}

// handleDiscover re-identifies the rig and adds any new devices.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if s.rig == nil {
		writeUnavailable(w, "rig discovery")
		return
	}
	result, err := s.registry.Discover(r.Context(), s.rig)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromPath(w, r)
	if !ok {
		return
	}
	dev, err := s.registry.Lookup(ref)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceHistory returns archived samples for a device, newest first.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeUnavailable(w, "sample archive")
		return
	}
	ref, ok := refFromPath(w, r)
	if !ok {
		return
	}
	if _, err := s.registry.Lookup(ref); err != nil {
		s.writeDomainError(w, err)
		return
	}

	records, err := s.archive.Samples(r.Context(), ref, queryLimit(r))
	if err != nil {
		s.logger.Error("reading sample archive", "device", ref.String(), "error", err)
		writeInternalError(w, "failed to read archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device":  ref,
		"samples": records,
		"count":   len(records),
	})
}

// handleDeviceTrend returns a device's long-term values from the
// time-series database as a raw Prometheus range-query response.
// ?since= (default 1h) and ?step= (default 10s) are Go durations.
func (s *Server) handleDeviceTrend(w http.ResponseWriter, r *http.Request) {
	if s.tsdb == nil {
		writeUnavailable(w, "time-series database")
		return
	}
	ref, ok := refFromPath(w, r)
	if !ok {
		return
	}
	since, ok := queryDuration(w, r, "since", time.Hour)
	if !ok {
		return
	}
	step, ok := queryDuration(w, r, "step", 10*time.Second)
	if !ok {
		return
	}

	end := time.Now()
	raw, err := s.tsdb.QueryRange(r.Context(), tsdb.SampleQuery(string(ref.Kind), ref.ID), end.Add(-since), end, step)
	switch {
	case errors.Is(err, tsdb.ErrInvalidQuery):
		writeBadRequest(w, err.Error())
		return
	case err != nil:
		s.logger.Warn("trend query failed", "device", ref.String(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "time-series query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write(raw)
}

// refFromPath reads a device ref from the {kind}/{id} path parameters.
func refFromPath(w http.ResponseWriter, r *http.Request) (device.Ref, bool) {
	ref, err := device.ParseRef(chi.URLParam(r, "kind") + "/" + chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return device.Ref{}, false
	}
	return ref, true
}

// queryDuration parses a positive duration parameter, writing a 400 when
// it is malformed.
func queryDuration(w http.ResponseWriter, r *http.Request, name string, def time.Duration) (time.Duration, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		writeBadRequest(w, name+" must be a positive duration such as 30m")
		return 0, false
	}
	return d, true
}

// queryLimit parses ?limit=, returning 0 (the store's default) when absent
// or invalid.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
