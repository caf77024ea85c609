package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/utils"
)

// Version is reported by /health; set at build time with -ldflags.
var Version = "dev"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := s.container.JournalDB.Conn().PingContext(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	utils.WriteJSON(w, s.log, code, map[string]interface{}{
		"status":  status,
		"version": Version,
		"service": "tradejournal",
	})
}
