package domain

import (
	"time"

	"github.com/google/uuid"
)

// Real-time event kinds. Field names follow the wire format the dashboard
// frontend already speaks.
const (
	EventNewComment    = "new_comment"
	EventStats         = "stats"
	EventReviewUpdated = "reviewUpdated"
	EventBookStats     = "book_stats"
	EventReviewUpdate  = "reviewUpdate" // inbound only
)

// Event is the envelope for every real-time message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewCommentPayload announces a freshly created comment. Sentiment is null
// while inference is still pending or degraded.
type NewCommentPayload struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"bookId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Sentiment *string   `json:"sentiment"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsPayload carries the hub's running sentiment counters. Percentages are
// zero when no sentiment has been counted yet.
type StatsPayload struct {
	Positive           int     `json:"positive"`
	Negative           int     `json:"negative"`
	Total              int     `json:"total"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
}

// ReviewUpdatedPayload is the denormalized correction notification.
type ReviewUpdatedPayload struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	BookID    uuid.UUID `json:"bookId"`
	BookTitle string    `json:"bookTitle"`
	Sentiment string    `json:"sentiment"`
	Timestamp string    `json:"timestamp"`
	IsEditing bool      `json:"isEditing"`
}

// BookStatsEntry is one book's live sentiment stats in a book_stats event.
type BookStatsEntry struct {
	ID    uuid.UUID      `json:"id"`
	Title string         `json:"title"`
	Stats SentimentStats `json:"stats"`
}

// ReviewUpdatePayload is the inbound client-requested correction notice.
type ReviewUpdatePayload struct {
	ID        uuid.UUID `json:"id"`
	Sentiment string    `json:"sentiment"`
}
