package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/api/middleware"
	"github.com/breatheroute/airview/internal/view"
)

// WebSocketConfig contains configuration for WebSocket connections.
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period; must be less than PongWait
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

// StreamHandler streams board events over a WebSocket.
type StreamHandler struct {
	board    Board
	config   WebSocketConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler. Browser connections are
// accepted from allowedOrigins; "*" accepts any origin.
func NewStreamHandler(board Board, allowedOrigins []string, cfg WebSocketConfig, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		board:  board,
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "stream").Logger(),
	}
}

// Stream handles GET /v1/dashboard/ws. The first message is a snapshot of
// the board; every later message is one change. Clients only receive;
// anything they send is discarded.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerWithRequestID(r.Context(), h.logger).
		With().Str("remote_addr", r.RemoteAddr).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	events, unsubscribe := h.board.Subscribe()
	defer unsubscribe()

	opened := time.Now()
	log.Info().Msg("stream opened")

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, events, done)

	_ = conn.Close()
	log.Info().Dur("duration", time.Since(opened)).Msg("stream closed")
}

// readPump drains the connection so control frames are processed, and
// closes done when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, events <-chan view.Event, done <-chan struct{}) {
	ticker := time.NewTicker(h.config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if !ok {
				// The board dropped this subscriber for falling behind.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
