package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/auth"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// WSStreamHandler serves the same frames as the SSE stream over a
// WebSocket. ?encoding=msgpack switches to binary MessagePack frames.
type WSStreamHandler struct {
	server *Server
	log    zerolog.Logger
}

// NewWSStreamHandler creates a new WebSocket stream handler.
func NewWSStreamHandler(s *Server, log zerolog.Logger) *WSStreamHandler {
	return &WSStreamHandler{
		server: s,
		log:    log.With().Str("component", "ws_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/ws.
func (h *WSStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	encoding := r.URL.Query().Get("encoding")
	if encoding != "" && encoding != "json" && encoding != "msgpack" {
		http.Error(w, `{"error":"encoding must be json or msgpack"}`, http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	// Validate before upgrading so bad queries get a normal HTTP error.
	if _, _, _, err := h.server.streamParams(r); err != nil {
		utils.WriteError(w, h.log, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")

	// Clients only listen; CloseRead handles pings and reports disconnects.
	ctx := conn.CloseRead(r.Context())

	stream, err := h.server.openStream(ctx, r, userID)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer stream.Close()

	log := h.log.With().Str("user_id", userID).Str("encoding", encoding).Logger()
	log.Info().Msg("WebSocket client connected")

	send := func(f streamFrame) error {
		typ, data, err := encodeFrame(f, encoding)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer cancel()
		return conn.Write(wctx, typ, data)
	}

	if err := send(connectedFrame(stream.query.Kind)); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			log.Info().Msg("WebSocket client disconnected")
			return

		case snap, ok := <-stream.feed.Updates():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			err = send(stream.snapshotFrame(snap))

		case e, ok := <-stream.eventChan():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			err = send(eventFrame(e))

		case <-heartbeat.C:
			err = send(heartbeatFrame())
		}
		if err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

// encodeFrame renders a frame as JSON text or MessagePack binary. The
// MessagePack form is the JSON document re-encoded, so both carry the same
// keys and decimal strings.
func encodeFrame(f streamFrame, encoding string) (websocket.MessageType, []byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return 0, nil, err
	}
	if encoding != "msgpack" {
		return websocket.MessageText, data, nil
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, nil, err
	}
	packed, err := msgpack.Marshal(doc)
	if err != nil {
		return 0, nil, err
	}
	return websocket.MessageBinary, packed, nil
}
