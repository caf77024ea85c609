package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/rs/zerolog"
)

// EventsStreamHandler serves live journal snapshots over Server-Sent Events.
type EventsStreamHandler struct {
	server *Server
	log    zerolog.Logger
}

// NewEventsStreamHandler creates a new SSE stream handler.
func NewEventsStreamHandler(s *Server, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		server: s,
		log:    log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	userID := auth.UserID(r.Context())
	stream, err := h.server.openStream(r.Context(), r, userID)
	if err != nil {
		utils.WriteError(w, h.log, err)
		return
	}
	defer stream.Close()

	// The server write timeout would cut the stream otherwise.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	log := h.log.With().Str("user_id", userID).Str("kind", string(stream.query.Kind)).Logger()
	log.Info().Msg("Client connected to event stream")

	send := func(f streamFrame) {
		fmt.Fprintf(w, "data: %s\n\n", h.encode(f))
		flusher.Flush()
	}
	send(connectedFrame(stream.query.Kind))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			log.Info().Msg("Client disconnected from event stream")
			return

		case snap, ok := <-stream.feed.Updates():
			if !ok {
				return
			}
			send(stream.snapshotFrame(snap))

		case e, ok := <-stream.eventChan():
			if !ok {
				return
			}
			send(eventFrame(e))

		case <-heartbeat.C:
			send(heartbeatFrame())
		}
	}
}

// encode encodes a frame to a JSON string.
func (h *EventsStreamHandler) encode(f streamFrame) string {
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal frame")
		return `{"type":"error","error":"failed to encode frame"}`
	}
	return string(data)
}
