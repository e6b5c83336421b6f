package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard frontends are served from arbitrary origins.
		return true
	},
}

// inboundMessage is the envelope clients send over the websocket. Only
// reviewUpdate is understood; anything else is ignored.
type inboundMessage struct {
	Type string `json:"type"`
	Data struct {
		ID        uuid.UUID `json:"id"`
		Sentiment string    `json:"sentiment"`
	} `json:"data"`
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		slog.Warn("Websocket connection rejected", "ip", ip, "reason", reason)
		metrics.WebSocketConnectionsTotal.WithLabelValues(string(reason)).Inc()
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "connection limit reached"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		slog.Error("Failed to upgrade websocket", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		s.limits.Release(ip)
		slog.Warn("Hub rejected connection", "error", err)
		return nil
	}

	// Read pump. Blocks until the client disconnects or stops answering
	// pings; the pong handler inside the hub's writer refreshes the read
	// deadline this loop observes.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleInbound(data)
	}

	s.hub.Unregister(conn)
	s.limits.Release(ip)
	return nil
}

// handleInbound processes a client-sent message. Corrections arriving over
// the socket trigger the broadcast chain but do not persist the sentiment;
// persistence stays with the HTTP correction endpoint.
func (s *Server) handleInbound(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("Ignoring malformed websocket message", "error", err)
		return
	}
	if msg.Type != domain.EventReviewUpdate {
		return
	}

	sentiment := strings.ToLower(strings.TrimSpace(msg.Data.Sentiment))
	if sentiment != domain.SentimentPositive && sentiment != domain.SentimentNegative {
		slog.Debug("Ignoring reviewUpdate with invalid sentiment", "sentiment", msg.Data.Sentiment)
		return
	}
	if msg.Data.ID == uuid.Nil {
		return
	}

	// Detached from the request context: the broadcast chain should finish
	// even if this client disconnects mid-way.
	s.hub.BroadcastSentimentCorrection(context.Background(), msg.Data.ID, sentiment)
}
