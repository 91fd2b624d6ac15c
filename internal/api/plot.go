package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/poller"
)

// handleStartPlot starts a plot session from an AxisSelection body. The
// session runs under the server context, not the request's.
func (s *Server) handleStartPlot(w http.ResponseWriter, r *http.Request) {
	var sel poller.AxisSelection
	if !decodeBody(w, r, &sel) {
		return
	}

	st, err := s.poller.Start(s.ctx, sel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// handleStopPlot asks the current session to stop. Stopping an idle poller
// is not an error; the last status is returned.
func (s *Server) handleStopPlot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Stop())
}

func (s *Server) handleGetPlot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Snapshot())
}

// handleOverview returns the all-sensor overview drawn in the background.
func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	if s.overview == nil {
		writeUnavailable(w, "overview")
		return
	}
	plots := s.overview.Latest()
	if plots == nil {
		plots = []chart.PlotSeries{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": plots})
}

// handlePlotImage serves the last render as PNG or SVG depending on the
// path suffix. The image is buffered so a render failure still gets a JSON
// error.
func (s *Server) handlePlotImage(w http.ResponseWriter, r *http.Request) {
	if s.image == nil {
		writeUnavailable(w, "image rendering")
		return
	}

	var buf bytes.Buffer
	contentType := "image/png"
	write := s.image.WritePNG
	if strings.HasSuffix(r.URL.Path, ".svg") {
		contentType = "image/svg+xml"
		write = s.image.WriteSVG
	}
	if err := write(&buf); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	buf.WriteTo(w)
}
