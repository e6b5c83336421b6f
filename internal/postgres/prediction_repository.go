package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

// predictionColumns must match the Scan order in scanPredictionLog.
const predictionColumns = `id, comment_id, text, predicted_sentiment, confidence_score, response_time, created_at`

// PredictionRepo implements domain.PredictionRepository backed by PostgreSQL.
// The table is append-only; rows are never updated or deleted.
type PredictionRepo struct {
	pool *pgxpool.Pool
}

func NewPredictionRepo(pool *pgxpool.Pool) *PredictionRepo {
	return &PredictionRepo{pool: pool}
}

func scanPredictionLog(row pgx.Row) (*domain.PredictionLog, error) {
	var log domain.PredictionLog
	err := row.Scan(
		&log.ID, &log.CommentID, &log.Text, &log.PredictedSentiment,
		&log.ConfidenceScore, &log.ResponseTime, &log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *PredictionRepo) Insert(ctx context.Context, log *domain.PredictionLog) error {
	if log.CommentID == uuid.Nil {
		return fmt.Errorf("comment id must not be empty")
	}
	if log.Text == "" || log.PredictedSentiment == "" {
		return fmt.Errorf("text and predicted sentiment must not be empty")
	}
	if log.ConfidenceScore < 0 || log.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %f out of range [0, 1]", log.ConfidenceScore)
	}
	if log.ResponseTime < 0 {
		return fmt.Errorf("response time %f must not be negative", log.ResponseTime)
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO prediction_logs (id, comment_id, text, predicted_sentiment, confidence_score, response_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, log.ID, log.CommentID, log.Text, log.PredictedSentiment,
		log.ConfidenceScore, log.ResponseTime, log.CreatedAt).
		Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction log: %w", err)
	}
	return nil
}

func (r *PredictionRepo) LatestByComment(ctx context.Context, commentID uuid.UUID) (*domain.PredictionLog, error) {
	log, err := scanPredictionLog(r.pool.QueryRow(ctx, `
		SELECT `+predictionColumns+` FROM prediction_logs
		WHERE comment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoPrediction
		}
		return nil, fmt.Errorf("failed to get latest prediction: %w", err)
	}
	return log, nil
}

func (r *PredictionRepo) ListSince(ctx context.Context, since time.Time) ([]domain.PredictionLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+predictionColumns+` FROM prediction_logs
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list prediction logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.PredictionLog
	for rows.Next() {
		log, err := scanPredictionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction log: %w", err)
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

// ListConfirmedPairsSince joins each prediction in the window with the
// current sentiment of its comment. Deliberately only the most recent
// prediction per comment participates: a superseded prediction should not
// count against (or toward) accuracy once the model has re-scored the
// comment. Comments whose sentiment was cleared are skipped.
func (r *PredictionRepo) ListConfirmedPairsSince(ctx context.Context, since time.Time) ([]domain.ConfirmedPair, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (p.comment_id) p.predicted_sentiment, c.sentiment
		FROM prediction_logs p
		JOIN comments c ON c.id = p.comment_id
		WHERE p.created_at >= $1 AND c.sentiment IS NOT NULL
		ORDER BY p.comment_id, p.created_at DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.ConfirmedPair
	for rows.Next() {
		var pair domain.ConfirmedPair
		if err := rows.Scan(&pair.Predicted, &pair.Confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan confirmed pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}
