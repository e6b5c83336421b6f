// Package analytics computes model performance snapshots over the prediction
// log and assembles the dashboard view.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

const recentCorrectionsLimit = 10

// Aggregator recomputes metrics snapshots from raw prediction logs. Snapshots
// are append-only; each Refresh inserts a new row instead of mutating state.
type Aggregator struct {
	predictions   domain.PredictionRepository
	snapshots     domain.SnapshotRepository
	comments      domain.CommentRepository
	clock         clockwork.Clock
	defaultWindow time.Duration
}

func NewAggregator(
	predictions domain.PredictionRepository,
	snapshots domain.SnapshotRepository,
	comments domain.CommentRepository,
	clock clockwork.Clock,
	defaultWindow time.Duration,
) *Aggregator {
	if defaultWindow <= 0 {
		defaultWindow = time.Hour
	}
	return &Aggregator{
		predictions:   predictions,
		snapshots:     snapshots,
		comments:      comments,
		clock:         clock,
		defaultWindow: defaultWindow,
	}
}

// Refresh aggregates the prediction logs inside the window ending now and
// persists the result as a new snapshot. A non-positive window selects the
// configured default. An empty window still persists an all-zero snapshot so
// the dashboard reflects "no recent activity" rather than stale numbers.
func (a *Aggregator) Refresh(ctx context.Context, window time.Duration) (*domain.MetricsSnapshot, error) {
	timer := prometheus.NewTimer(metrics.MetricsRefreshDuration)
	defer timer.ObserveDuration()

	if window <= 0 {
		window = a.defaultWindow
	}
	since := a.clock.Now().Add(-window)

	logs, err := a.predictions.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list prediction logs: %w", err)
	}

	snapshot := a.aggregate(logs)

	pairs, err := a.predictions.ListConfirmedPairsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed pairs: %w", err)
	}
	correct := 0
	for _, pair := range pairs {
		if strings.EqualFold(pair.Predicted, pair.Confirmed) {
			correct++
		}
	}
	snapshot.CorrectPredictions = correct
	if len(pairs) > 0 {
		snapshot.Accuracy = float64(correct) / float64(len(pairs))
	}

	if err := a.snapshots.Insert(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist metrics snapshot: %w", err)
	}

	slog.Debug("Metrics snapshot refreshed",
		"window", window,
		"total_predictions", snapshot.TotalPredictions,
		"accuracy", snapshot.Accuracy)
	return snapshot, nil
}

func (a *Aggregator) aggregate(logs []domain.PredictionLog) *domain.MetricsSnapshot {
	snapshot := &domain.MetricsSnapshot{}
	if len(logs) == 0 {
		return snapshot
	}

	var confidenceSum, responseSum float64
	minConfidence := logs[0].ConfidenceScore
	maxConfidence := logs[0].ConfidenceScore

	for _, log := range logs {
		confidenceSum += log.ConfidenceScore
		responseSum += log.ResponseTime
		if log.ConfidenceScore < minConfidence {
			minConfidence = log.ConfidenceScore
		}
		if log.ConfidenceScore > maxConfidence {
			maxConfidence = log.ConfidenceScore
		}
		if strings.EqualFold(log.PredictedSentiment, domain.SentimentPositive) {
			snapshot.PositiveCount++
		} else {
			snapshot.NegativeCount++
		}
	}

	n := float64(len(logs))
	snapshot.TotalPredictions = len(logs)
	snapshot.AvgConfidence = confidenceSum / n
	snapshot.MinConfidence = minConfidence
	snapshot.MaxConfidence = maxConfidence
	snapshot.AvgResponseTime = responseSum / n
	return snapshot
}

// Dashboard assembles the dashboard view from the latest snapshot and the
// most recent classified comments. When no snapshot exists yet, one is
// computed on the spot.
func (a *Aggregator) Dashboard(ctx context.Context) (*domain.DashboardView, error) {
	snapshot, err := a.snapshots.Latest(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSnapshot) {
			return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
		}
		snapshot, err = a.Refresh(ctx, 0)
		if err != nil {
			return nil, err
		}
	}

	recent, err := a.comments.ListRecentWithSentiment(ctx, recentCorrectionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent comments: %w", err)
	}

	corrections := make([]domain.RecentCorrection, 0, len(recent))
	for _, comment := range recent {
		if comment.Sentiment == nil {
			continue
		}
		corrections = append(corrections, domain.RecentCorrection{
			Content:            comment.Content,
			CorrectedSentiment: *comment.Sentiment,
			Timestamp:          comment.CreatedAt,
		})
	}

	distribution := domain.SentimentDistribution{
		Positive: snapshot.PositiveCount,
		Negative: snapshot.NegativeCount,
	}
	if snapshot.TotalPredictions > 0 {
		total := float64(snapshot.TotalPredictions)
		distribution.PositivePercentage = float64(snapshot.PositiveCount) / total * 100
		distribution.NegativePercentage = float64(snapshot.NegativeCount) / total * 100
	}

	return &domain.DashboardView{
		ModelPerformance: domain.ModelPerformance{
			Accuracy:         snapshot.Accuracy,
			TotalPredictions: snapshot.TotalPredictions,
			AvgResponseTime:  fmt.Sprintf("%.1fms", snapshot.AvgResponseTime),
		},
		SentimentDistribution: distribution,
		RecentCorrections:     corrections,
	}, nil
}
