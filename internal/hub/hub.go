// Package hub fans real-time sentiment events out to websocket subscribers.
// A single actor goroutine owns the client set and the live sentiment
// counters, so no locking is needed on the hot path.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	event domain.Event
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type liveStatsCmd struct {
	baseHubCmd
	replyChannel chan domain.StatsPayload
}

type stopCmd struct {
	baseHubCmd
}

// Hub broadcasts events to all connected clients. Its sentiment counters
// count classified comments seen since startup; they are a live session view
// and deliberately independent from the database-backed historical stats.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	maxClients int

	books       domain.BookRepository
	comments    domain.CommentRepository
	refresher   domain.MetricsRefresher
	corrections domain.CorrectionRecorder

	positive int
	negative int

	done chan struct{}
}

func New(
	books domain.BookRepository,
	comments domain.CommentRepository,
	refresher domain.MetricsRefresher,
	corrections domain.CorrectionRecorder,
	clock clockwork.Clock,
	maxClients int,
) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		clients:     make(map[*websocket.Conn]*clientWriter),
		maxClients:  maxClients,
		books:       books,
		comments:    comments,
		refresher:   refresher,
		corrections: corrections,
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a connection to the hub. Returns an error when the client
// limit is reached; the connection is closed in that case.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// ClientCount returns the number of connected clients, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// LiveStats returns the hub's running sentiment counters.
func (h *Hub) LiveStats() domain.StatsPayload {
	replyCh := make(chan domain.StatsPayload, 1)
	h.cmdCh <- liveStatsCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats
	case <-timer.Chan():
		slog.Warn("LiveStats timed out", "timeout", commandTimeout)
		return domain.StatsPayload{}
	}
}

// Broadcast fans event out to every connected client. A new_comment event
// carrying a classified sentiment also updates the live counters and is
// followed by a stats event on every connection, in that order.
func (h *Hub) Broadcast(event domain.Event) {
	h.cmdCh <- broadcastCmd{event: event}
}

// BroadcastSentimentCorrection loads the corrected comment, refreshes the
// model metrics, records the misprediction for retraining, and fans out a
// reviewUpdated event. All steps are best-effort; failures are logged. The
// database work runs in the caller's goroutine, not the actor.
func (h *Hub) BroadcastSentimentCorrection(ctx context.Context, commentID uuid.UUID, sentiment string) {
	comment, err := h.comments.GetByID(ctx, commentID)
	if err != nil {
		slog.Error("Correction broadcast: failed to load comment", "comment_id", commentID, "error", err)
		return
	}

	bookTitle := ""
	if book, err := h.books.GetByID(ctx, comment.BookID); err != nil {
		slog.Warn("Correction broadcast: failed to load book", "book_id", comment.BookID, "error", err)
	} else {
		bookTitle = book.Title
	}

	if _, err := h.refresher.Refresh(ctx, 0); err != nil {
		slog.Error("Correction broadcast: metrics refresh failed", "error", err)
		metrics.PipelineSideEffectFailures.WithLabelValues("metrics_refresh").Inc()
	}

	if err := h.corrections.RecordIfMispredicted(ctx, commentID, sentiment); err != nil {
		slog.Error("Correction broadcast: ledger append failed", "comment_id", commentID, "error", err)
		metrics.PipelineSideEffectFailures.WithLabelValues("ledger").Inc()
	}

	h.Broadcast(domain.Event{
		Type: domain.EventReviewUpdated,
		Data: domain.ReviewUpdatedPayload{
			ID:        comment.ID,
			Content:   comment.Content,
			UserID:    comment.UserID,
			UserName:  comment.UserName,
			BookID:    comment.BookID,
			BookTitle: bookTitle,
			Sentiment: sentiment,
			Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
			IsEditing: false,
		},
	})
}

// BroadcastBookStats fans out per-book sentiment counts from the database.
func (h *Hub) BroadcastBookStats(ctx context.Context) {
	books, err := h.books.List(ctx)
	if err != nil {
		slog.Error("Book stats broadcast: failed to list books", "error", err)
		return
	}

	entries := make([]domain.BookStatsEntry, 0, len(books))
	for _, book := range books {
		stats, err := h.comments.SentimentStats(ctx, &book.ID)
		if err != nil {
			slog.Warn("Book stats broadcast: failed to load stats", "book_id", book.ID, "error", err)
			continue
		}
		entries = append(entries, domain.BookStatsEntry{ID: book.ID, Title: book.Title, Stats: stats})
	}

	h.Broadcast(domain.Event{Type: domain.EventBookStats, Data: entries})
}

// Stop shuts down the hub, closing all client connections. Blocks until the
// actor goroutine has exited or the timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case broadcastCmd:
			h.handleBroadcast(c.event)
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case liveStatsCmd:
			c.replyChannel <- h.liveStats()
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max connections reached", "max_clients", h.maxClients)
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max connections (%d) reached", h.maxClients)
		return
	}

	h.clients[c.connection] = newClientWriter(c.connection, h.clock)
	metrics.HubClients.Set(float64(len(h.clients)))
	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()

	slog.Debug("Client registered", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.HubClients.Set(float64(len(h.clients)))
	slog.Debug("Client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(event domain.Event) {
	messages := make([][]byte, 0, 2)

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "type", event.Type, "error", err)
		return
	}
	messages = append(messages, data)

	// A classified new comment bumps the live counters and is chased by a
	// stats event so every client sees the comment before the new totals.
	if payload, ok := event.Data.(domain.NewCommentPayload); ok && event.Type == domain.EventNewComment && payload.Sentiment != nil {
		switch *payload.Sentiment {
		case domain.SentimentPositive:
			h.positive++
		case domain.SentimentNegative:
			h.negative++
		}

		statsData, err := json.Marshal(domain.Event{Type: domain.EventStats, Data: h.liveStats()})
		if err != nil {
			slog.Error("Failed to marshal stats event", "error", err)
		} else {
			messages = append(messages, statsData)
		}
	}

	metrics.HubBroadcastsTotal.WithLabelValues(event.Type).Inc()

	var slow []*websocket.Conn
	for conn, writer := range h.clients {
		if !enqueueAll(writer, messages) {
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.HubEvictionsTotal.Inc()
		h.handleUnregister(conn)
	}
}

// enqueueAll reports whether every message fit in the writer's buffer.
func enqueueAll(writer *clientWriter, messages [][]byte) bool {
	for _, msg := range messages {
		select {
		case writer.sendChannel <- msg:
		default:
			return false
		}
	}
	return true
}

func (h *Hub) liveStats() domain.StatsPayload {
	stats := domain.StatsPayload{
		Positive: h.positive,
		Negative: h.negative,
		Total:    h.positive + h.negative,
	}
	if stats.Total > 0 {
		stats.PositivePercentage = float64(stats.Positive) / float64(stats.Total) * 100
		stats.NegativePercentage = float64(stats.Negative) / float64(stats.Total) * 100
	}
	return stats
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.clients))
	for conn, cw := range h.clients {
		cw.stopGraceful("Server shutting down")
		delete(h.clients, conn)
	}
	metrics.HubClients.Set(0)
}
