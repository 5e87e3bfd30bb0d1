package api

import (
	"net/http"
)

// handleSessionStatus returns the messaging session snapshot.
func (s *Server) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// handleSessionReconnect tears down and re-establishes the messaging
// session, restoring every device subscription.
func (s *Server) handleSessionReconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reconnect(r.Context()); err != nil {
		s.logger.Warn("manual reconnect failed", "error", err)
		writeFacadeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}
