package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/dooropener-core/internal/audit"
)

// handleLogs returns the most recent audit trail entries, newest last.
// An optional ?limit= query narrows the window; it is capped by the
// configured history limit.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := s.auditCfg.HistoryLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	entries, err := audit.ReadHistory(s.trail.Path(), limit)
	if err != nil {
		s.logger.Error("failed to read audit history", "error", err)
		writeInternalError(w, "failed to read logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs": entries,
	})
}
