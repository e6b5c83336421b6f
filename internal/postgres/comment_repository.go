package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

// commentColumns must match the Scan order in scanComment.
const commentColumns = `id, book_id, user_id, user_name, content, sentiment, created_at`

// CommentRepo implements domain.CommentRepository backed by PostgreSQL.
type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var comment domain.Comment
	err := row.Scan(
		&comment.ID, &comment.BookID, &comment.UserID, &comment.UserName,
		&comment.Content, &comment.Sentiment, &comment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (id, book_id, user_id, user_name, content, sentiment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, comment.ID, comment.BookID, comment.UserID, comment.UserName,
		comment.Content, comment.Sentiment, comment.CreatedAt).
		Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, commentID uuid.UUID) (*domain.Comment, error) {
	comment, err := scanComment(r.pool.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

func (r *CommentRepo) UpdateSentiment(ctx context.Context, commentID uuid.UUID, sentiment string) (*domain.Comment, error) {
	comment, err := scanComment(r.pool.QueryRow(ctx, `
		UPDATE comments
		SET sentiment = $1
		WHERE id = $2
		RETURNING `+commentColumns+`
	`, sentiment, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to update sentiment: %w", err)
	}
	return comment, nil
}

func (r *CommentRepo) ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE book_id = $1 ORDER BY created_at DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	return collectComments(rows)
}

func (r *CommentRepo) ListRecentWithSentiment(ctx context.Context, limit int) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE sentiment IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent comments: %w", err)
	}
	defer rows.Close()

	return collectComments(rows)
}

// SentimentStats counts classified comments, for one book or across all books
// when bookID is nil. Unclassified comments are not counted.
func (r *CommentRepo) SentimentStats(ctx context.Context, bookID *uuid.UUID) (domain.SentimentStats, error) {
	var stats domain.SentimentStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE sentiment IS NOT NULL),
			COUNT(*) FILTER (WHERE LOWER(sentiment) = 'positive'),
			COUNT(*) FILTER (WHERE LOWER(sentiment) = 'negative')
		FROM comments
		WHERE $1::uuid IS NULL OR book_id = $1
	`, bookID).Scan(&stats.Total, &stats.Positive, &stats.Negative)
	if err != nil {
		return domain.SentimentStats{}, fmt.Errorf("failed to compute sentiment stats: %w", err)
	}

	if stats.Total > 0 {
		stats.PositivePercentage = float64(stats.Positive) / float64(stats.Total) * 100
		stats.NegativePercentage = float64(stats.Negative) / float64(stats.Total) * 100
	}
	return stats, nil
}

func collectComments(rows pgx.Rows) ([]domain.Comment, error) {
	var comments []domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}
	return comments, rows.Err()
}
