package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// wsWriteWait bounds every write to a WebSocket peer
const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Same policy as the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketEvents handles GET /api/v1/events/ws. It behaves like
// StreamEvents, with each block sent as a JSON text message and keepalives
// sent as pings.
func (h *Handlers) WebSocketEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		h.logger.Debug("websocket upgrade failed", "request_id", GetRequestID(r), "error", err)
		return
	}
	defer conn.Close()

	// A hijacked connection does not cancel the request context; the reader
	// does it when the peer goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With("request_id", GetRequestID(r), "client_id", GetClientID(r))
	logger.Info("websocket consumer attached")
	defer logger.Info("websocket consumer detached")

	var sequence uint64
	for {
		block, err := h.nextBlock(ctx)
		if err != nil {
			if errors.Is(err, eventbuf.ErrClosed) {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "buffer closed")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			}
			return
		}

		if block == "" {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		}

		records, err := filter.Apply(block)
		if err != nil {
			logger.Warn("filter failed, block skipped", "error", err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		sequence++
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(StreamMessage{
			Sequence:  sequence,
			Records:   records,
			Bytes:     len(block),
			Timestamp: time.Now(),
		}); err != nil {
			h.node.Store().Restore(block)
			logger.Warn("websocket write failed, block restored", "bytes", len(block), "error", err)
			return
		}
	}
}
