// Package app implements the application service layer. It owns the comment
// pipeline: persist first, then infer, commit the label, log the prediction,
// and finally broadcast. Side effects after the comment commit are
// best-effort and never fail the request.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	apperrors "github.com/iMan-sources/sentiment-analysis/internal/errors"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

const maxCommentLength = 2000

// ScoringPool bounds concurrent inference. The error is only a context
// cancellation while waiting for a slot.
type ScoringPool interface {
	Score(ctx context.Context, text string) (domain.Prediction, error)
}

// Service wires repositories, the inference pool, the aggregator, and the hub
// into the operations exposed over HTTP and websocket.
type Service struct {
	books       domain.BookRepository
	comments    domain.CommentRepository
	predictions domain.PredictionRepository
	pool        ScoringPool
	aggregator  domain.MetricsRefresher
	dashboard   DashboardProvider
	hub         domain.Broadcaster
	clock       clockwork.Clock
}

// DashboardProvider assembles the dashboard view.
type DashboardProvider interface {
	Dashboard(ctx context.Context) (*domain.DashboardView, error)
}

func NewService(
	books domain.BookRepository,
	comments domain.CommentRepository,
	predictions domain.PredictionRepository,
	pool ScoringPool,
	aggregator domain.MetricsRefresher,
	dashboard DashboardProvider,
	hub domain.Broadcaster,
	clock clockwork.Clock,
) *Service {
	return &Service{
		books:       books,
		comments:    comments,
		predictions: predictions,
		pool:        pool,
		aggregator:  aggregator,
		dashboard:   dashboard,
		hub:         hub,
		clock:       clock,
	}
}

// Books lists the catalog.
func (s *Service) Books(ctx context.Context) ([]domain.Book, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to list books", err)
	}
	return books, nil
}

// Book fetches a single book.
func (s *Service) Book(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return nil, apperrors.NotFoundError("book not found").WithContext("book_id", bookID.String())
		}
		return nil, apperrors.InternalError("failed to load book", err)
	}
	return book, nil
}

// BookComments lists a book's comments, optionally filtered by sentiment.
// An unknown sentiment filter is a validation error.
func (s *Service) BookComments(ctx context.Context, bookID uuid.UUID, sentiment string) ([]domain.Comment, error) {
	if sentiment != "" {
		normalized, err := normalizeSentiment(sentiment)
		if err != nil {
			return nil, err
		}
		sentiment = normalized
	}

	if _, err := s.Book(ctx, bookID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByBook(ctx, bookID)
	if err != nil {
		return nil, apperrors.InternalError("failed to list comments", err)
	}

	if sentiment == "" {
		return comments, nil
	}

	filtered := make([]domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if comment.Sentiment != nil && strings.EqualFold(*comment.Sentiment, sentiment) {
			filtered = append(filtered, comment)
		}
	}
	return filtered, nil
}

// CreateComment runs the full pipeline: validate, persist the comment with a
// nil sentiment, score it, commit the label, log the prediction, refresh the
// metrics, and broadcast. Only the comment persistence and the sentiment
// commit are terminal; every later step degrades to a log line.
func (s *Service) CreateComment(ctx context.Context, bookID uuid.UUID, userID, userName, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ValidationError("comment content must not be empty")
	}
	if len(content) > maxCommentLength {
		return nil, apperrors.ValidationError("comment content too long").
			WithContext("max_length", maxCommentLength)
	}
	if userID == "" {
		return nil, apperrors.ValidationError("user_id is required")
	}

	if _, err := s.Book(ctx, bookID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:        uuid.New(),
		BookID:    bookID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Sentiment: nil,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.InternalError("failed to create comment", err)
	}

	start := s.clock.Now()
	prediction, err := s.pool.Score(ctx, content)
	if err != nil {
		// Cancelled while queued for a slot. The comment is already
		// committed with a nil sentiment; report it as created.
		slog.Warn("Inference skipped", "comment_id", comment.ID, "error", err)
		metrics.PipelineSideEffectFailures.WithLabelValues("inference").Inc()
		s.broadcastNewComment(comment)
		return comment, nil
	}
	responseMs := float64(s.clock.Since(start).Microseconds()) / 1000.0

	vanished := false
	updated, err := s.comments.UpdateSentiment(ctx, comment.ID, prediction.Sentiment)
	switch {
	case errors.Is(err, domain.ErrCommentNotFound):
		// Deleted between create and commit. The model output is still
		// logged; the insert may fail on the foreign key, which counts as a
		// side-effect failure like any other.
		slog.Warn("Comment vanished before sentiment commit", "comment_id", comment.ID)
		vanished = true
	case err != nil:
		return nil, apperrors.InternalError("failed to commit sentiment", err)
	default:
		comment = updated
	}

	s.logPrediction(ctx, comment, prediction, responseMs)

	if _, err := s.aggregator.Refresh(ctx, 0); err != nil {
		slog.Error("Metrics refresh failed", "error", err)
		metrics.PipelineSideEffectFailures.WithLabelValues("metrics_refresh").Inc()
	}

	if vanished {
		// Nothing left to broadcast.
		return comment, nil
	}

	s.broadcastNewComment(comment)
	return comment, nil
}

func (s *Service) logPrediction(ctx context.Context, comment *domain.Comment, prediction domain.Prediction, responseMs float64) {
	if prediction.Score < 0 || prediction.Score > 1 {
		slog.Error("Dropping prediction log with out-of-range score",
			"comment_id", comment.ID, "score", prediction.Score)
		metrics.PipelineSideEffectFailures.WithLabelValues("prediction_log").Inc()
		return
	}

	entry := &domain.PredictionLog{
		ID:                 uuid.New(),
		CommentID:          comment.ID,
		Text:               comment.Content,
		PredictedSentiment: prediction.Sentiment,
		ConfidenceScore:    prediction.Score,
		ResponseTime:       responseMs,
		CreatedAt:          s.clock.Now().UTC(),
	}
	if err := s.predictions.Insert(ctx, entry); err != nil {
		slog.Error("Failed to insert prediction log", "comment_id", comment.ID, "error", err)
		metrics.PipelineSideEffectFailures.WithLabelValues("prediction_log").Inc()
	}
}

func (s *Service) broadcastNewComment(comment *domain.Comment) {
	s.hub.Broadcast(domain.Event{
		Type: domain.EventNewComment,
		Data: domain.NewCommentPayload{
			ID:        comment.ID,
			BookID:    comment.BookID,
			UserID:    comment.UserID,
			UserName:  comment.UserName,
			Content:   comment.Content,
			Sentiment: comment.Sentiment,
			Timestamp: comment.CreatedAt,
		},
	})
}

// CorrectSentiment applies a human correction to a comment's sentiment and
// notifies subscribers. The persistence is terminal; the correction broadcast
// chain (metrics refresh, ledger append, fan-out) is best-effort.
func (s *Service) CorrectSentiment(ctx context.Context, commentID uuid.UUID, sentiment string) (*domain.Comment, error) {
	normalized, err := normalizeSentiment(sentiment)
	if err != nil {
		return nil, err
	}

	comment, err := s.comments.UpdateSentiment(ctx, commentID, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrCommentNotFound) {
			return nil, apperrors.NotFoundError("comment not found").WithContext("comment_id", commentID.String())
		}
		return nil, apperrors.InternalError("failed to update sentiment", err)
	}

	s.hub.BroadcastSentimentCorrection(ctx, commentID, normalized)
	s.hub.BroadcastBookStats(ctx)

	return comment, nil
}

// SentimentStats returns database-backed sentiment counts, for one book or
// across the whole catalog when bookID is nil.
func (s *Service) SentimentStats(ctx context.Context, bookID *uuid.UUID) (domain.SentimentStats, error) {
	if bookID != nil {
		if _, err := s.Book(ctx, *bookID); err != nil {
			return domain.SentimentStats{}, err
		}
	}

	stats, err := s.comments.SentimentStats(ctx, bookID)
	if err != nil {
		return domain.SentimentStats{}, apperrors.InternalError("failed to compute sentiment stats", err)
	}
	return stats, nil
}

// DashboardMetrics returns the model performance dashboard view.
func (s *Service) DashboardMetrics(ctx context.Context) (*domain.DashboardView, error) {
	view, err := s.dashboard.Dashboard(ctx)
	if err != nil {
		return nil, apperrors.InternalError("failed to build dashboard metrics", err)
	}
	return view, nil
}

func normalizeSentiment(sentiment string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(sentiment))
	switch normalized {
	case domain.SentimentPositive, domain.SentimentNegative:
		return normalized, nil
	default:
		return "", apperrors.ValidationError(
			fmt.Sprintf("sentiment must be %q or %q", domain.SentimentPositive, domain.SentimentNegative))
	}
}

var _ domain.AppService = (*Service)(nil)
