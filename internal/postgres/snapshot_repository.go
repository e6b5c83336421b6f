package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

// snapshotColumns must match the Scan order in scanSnapshot.
const snapshotColumns = `id, created_at, total_predictions, positive_count, negative_count,
	correct_predictions, accuracy, avg_confidence, min_confidence, max_confidence, avg_response_time`

// SnapshotRepo implements domain.SnapshotRepository backed by PostgreSQL.
// Snapshots form an append-only time series; Latest reads the newest row.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func scanSnapshot(row pgx.Row) (*domain.MetricsSnapshot, error) {
	var s domain.MetricsSnapshot
	err := row.Scan(
		&s.ID, &s.CreatedAt, &s.TotalPredictions, &s.PositiveCount, &s.NegativeCount,
		&s.CorrectPredictions, &s.Accuracy, &s.AvgConfidence, &s.MinConfidence,
		&s.MaxConfidence, &s.AvgResponseTime,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SnapshotRepo) Insert(ctx context.Context, snapshot *domain.MetricsSnapshot) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO model_metrics (
			total_predictions, positive_count, negative_count, correct_predictions,
			accuracy, avg_confidence, min_confidence, max_confidence, avg_response_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, snapshot.TotalPredictions, snapshot.PositiveCount, snapshot.NegativeCount,
		snapshot.CorrectPredictions, snapshot.Accuracy, snapshot.AvgConfidence,
		snapshot.MinConfidence, snapshot.MaxConfidence, snapshot.AvgResponseTime).
		Scan(&snapshot.ID, &snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert metrics snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context) (*domain.MetricsSnapshot, error) {
	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+` FROM model_metrics
		ORDER BY created_at DESC
		LIMIT 1
	`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snapshot, nil
}
