package server

import (
	"net/http"
	"time"

	"github.com/aiandyou50/CandleSpinner-sub000/pkg/winfeed"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventTypeConnected = "connected"
	EventTypeWin       = "win"
)

// FeedHandler streams live win events over WebSocket
type FeedHandler struct {
	feed            *winfeed.Broadcaster
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

// NewFeedHandler creates a win feed handler
func NewFeedHandler(feed *winfeed.Broadcaster, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:            feed,
		logger:          logger.With().Str("handler", "winfeed").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type feedMessage struct {
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Win       *winfeed.WinEvent `json:"win,omitempty"`
}

// Stream godoc
// @Summary      Live win feed
// @Description  Streams win events over WebSocket as they settle
// @Tags         game
// @Router       /api/feed/ws [get]
func (h *FeedHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second

	done := make(chan struct{})

	// Detect connection close
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute)) //nolint:errcheck
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
			} else {
				h.logger.Debug().Err(err).Msg("WebSocket closed normally")
			}
		}
	}()

	send := func(msg *feedMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
		return conn.WriteJSON(msg)
	}

	if err := send(&feedMessage{Type: EventTypeConnected, Timestamp: time.Now().Unix()}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	events, cancel := h.feed.Listen(c.Request.Context())
	defer cancel()

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to send ping")
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := send(&feedMessage{Type: EventTypeWin, Timestamp: time.Now().Unix(), Win: &event}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send win event, stopping stream")
				return
			}
		}
	}
}
