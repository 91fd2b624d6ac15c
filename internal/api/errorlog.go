package api

import "net/http"

func (s *Server) handleGetErrorLog(w http.ResponseWriter, _ *http.Request) {
	if s.errorLog == nil {
		writeUnavailable(w, "error log")
		return
	}
	writeJSON(w, http.StatusOK, s.errorLog.Snapshot())
}

// handleRefreshErrorLog fetches the log now. A rig failure is not an HTTP
// error here: the snapshot carries the failure text, as the panel shows it.
func (s *Server) handleRefreshErrorLog(w http.ResponseWriter, r *http.Request) {
	if s.errorLog == nil {
		writeUnavailable(w, "error log")
		return
	}
	if err := s.errorLog.Refresh(r.Context()); err != nil {
		s.logger.Debug("error log refresh failed", "error", err)
	}
	writeJSON(w, http.StatusOK, s.errorLog.Snapshot())
}
