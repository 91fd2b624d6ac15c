package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/export"
)

// handleExport downloads the full history of the devices named by repeated
// ?device=kind/id parameters as TSV (default) or XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeUnavailable(w, "export")
		return
	}

	q := r.URL.Query()
	name := q.Get("format")
	if name == "" {
		name = string(export.FormatTSV)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	refs := make([]device.Ref, 0, len(q["device"]))
	for _, raw := range q["device"] {
		ref, err := device.ParseRef(raw)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if _, err := s.registry.Lookup(ref); err != nil {
			s.writeDomainError(w, err)
			return
		}
		refs = append(refs, ref)
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(r.Context(), &buf, format, refs); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(refs, format)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	buf.WriteTo(w)
}
