package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

type fakePredictionRepo struct {
	logs      []domain.PredictionLog
	pairs     []domain.ConfirmedPair
	lastSince time.Time
}

func (f *fakePredictionRepo) Insert(_ context.Context, _ *domain.PredictionLog) error { return nil }

func (f *fakePredictionRepo) LatestByComment(_ context.Context, _ uuid.UUID) (*domain.PredictionLog, error) {
	return nil, domain.ErrNoPrediction
}

func (f *fakePredictionRepo) ListSince(_ context.Context, since time.Time) ([]domain.PredictionLog, error) {
	f.lastSince = since
	return f.logs, nil
}

func (f *fakePredictionRepo) ListConfirmedPairsSince(_ context.Context, _ time.Time) ([]domain.ConfirmedPair, error) {
	return f.pairs, nil
}

type fakeSnapshotRepo struct {
	inserted []*domain.MetricsSnapshot
	latest   *domain.MetricsSnapshot
}

func (f *fakeSnapshotRepo) Insert(_ context.Context, snapshot *domain.MetricsSnapshot) error {
	f.inserted = append(f.inserted, snapshot)
	return nil
}

func (f *fakeSnapshotRepo) Latest(_ context.Context) (*domain.MetricsSnapshot, error) {
	if f.latest == nil {
		return nil, domain.ErrNoSnapshot
	}
	return f.latest, nil
}

type fakeCommentRepo struct {
	recent []domain.Comment
}

func (f *fakeCommentRepo) Create(_ context.Context, _ *domain.Comment) error { return nil }

func (f *fakeCommentRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.Comment, error) {
	return nil, domain.ErrCommentNotFound
}

func (f *fakeCommentRepo) UpdateSentiment(_ context.Context, _ uuid.UUID, _ string) (*domain.Comment, error) {
	return nil, domain.ErrCommentNotFound
}

func (f *fakeCommentRepo) ListByBook(_ context.Context, _ uuid.UUID) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) ListRecentWithSentiment(_ context.Context, _ int) ([]domain.Comment, error) {
	return f.recent, nil
}

func (f *fakeCommentRepo) SentimentStats(_ context.Context, _ *uuid.UUID) (domain.SentimentStats, error) {
	return domain.SentimentStats{}, nil
}

func logEntry(sentiment string, confidence, responseMs float64) domain.PredictionLog {
	return domain.PredictionLog{
		ID:                 uuid.New(),
		CommentID:          uuid.New(),
		Text:               "text",
		PredictedSentiment: sentiment,
		ConfidenceScore:    confidence,
		ResponseTime:       responseMs,
	}
}

func TestRefreshAggregatesWindow(t *testing.T) {
	predictions := &fakePredictionRepo{
		logs: []domain.PredictionLog{
			logEntry(domain.SentimentPositive, 0.9, 10),
			logEntry(domain.SentimentNegative, 0.6, 20),
			logEntry("POSITIVE", 0.75, 30),
		},
		pairs: []domain.ConfirmedPair{
			{Predicted: "positive", Confirmed: "positive"},
			{Predicted: "positive", Confirmed: "POSITIVE"},
			{Predicted: "negative", Confirmed: "positive"},
			{Predicted: "negative", Confirmed: "negative"},
		},
	}
	snapshots := &fakeSnapshotRepo{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	agg := NewAggregator(predictions, snapshots, &fakeCommentRepo{}, clock, time.Hour)

	snapshot, err := agg.Refresh(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, clock.Now().Add(-30*time.Minute), predictions.lastSince)
	assert.Equal(t, 3, snapshot.TotalPredictions)
	assert.Equal(t, 2, snapshot.PositiveCount)
	assert.Equal(t, 1, snapshot.NegativeCount)
	assert.InDelta(t, 0.75, snapshot.AvgConfidence, 1e-9)
	assert.Equal(t, 0.6, snapshot.MinConfidence)
	assert.Equal(t, 0.9, snapshot.MaxConfidence)
	assert.InDelta(t, 20.0, snapshot.AvgResponseTime, 1e-9)
	assert.Equal(t, 3, snapshot.CorrectPredictions)
	assert.InDelta(t, 0.75, snapshot.Accuracy, 1e-9)

	require.Len(t, snapshots.inserted, 1)
	assert.Same(t, snapshot, snapshots.inserted[0])
}

func TestRefreshEmptyWindowPersistsZeroSnapshot(t *testing.T) {
	predictions := &fakePredictionRepo{}
	snapshots := &fakeSnapshotRepo{}
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(predictions, snapshots, &fakeCommentRepo{}, clock, time.Hour)

	snapshot, err := agg.Refresh(context.Background(), 0)
	require.NoError(t, err)

	// Zero window falls back to the default.
	assert.Equal(t, clock.Now().Add(-time.Hour), predictions.lastSince)
	assert.Zero(t, snapshot.TotalPredictions)
	assert.Zero(t, snapshot.Accuracy)
	require.Len(t, snapshots.inserted, 1)
}

func TestDashboardUsesLatestSnapshot(t *testing.T) {
	sentiment := domain.SentimentNegative
	comments := &fakeCommentRepo{
		recent: []domain.Comment{
			{Content: "too slow", Sentiment: &sentiment, CreatedAt: time.Now()},
			{Content: "pending", Sentiment: nil},
		},
	}
	snapshots := &fakeSnapshotRepo{
		latest: &domain.MetricsSnapshot{
			TotalPredictions: 4,
			PositiveCount:    3,
			NegativeCount:    1,
			Accuracy:         0.5,
			AvgResponseTime:  12.34,
		},
	}
	agg := NewAggregator(&fakePredictionRepo{}, snapshots, comments, clockwork.NewFakeClock(), time.Hour)

	view, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.5, view.ModelPerformance.Accuracy)
	assert.Equal(t, 4, view.ModelPerformance.TotalPredictions)
	assert.Equal(t, "12.3ms", view.ModelPerformance.AvgResponseTime)
	assert.Equal(t, 75.0, view.SentimentDistribution.PositivePercentage)
	assert.Equal(t, 25.0, view.SentimentDistribution.NegativePercentage)

	// Comments without a sentiment are excluded from recent corrections.
	require.Len(t, view.RecentCorrections, 1)
	assert.Equal(t, "too slow", view.RecentCorrections[0].Content)
	assert.Equal(t, domain.SentimentNegative, view.RecentCorrections[0].CorrectedSentiment)
}

func TestDashboardComputesSnapshotWhenNoneExists(t *testing.T) {
	snapshots := &fakeSnapshotRepo{}
	agg := NewAggregator(&fakePredictionRepo{}, snapshots, &fakeCommentRepo{}, clockwork.NewFakeClock(), time.Hour)

	view, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, view.ModelPerformance.TotalPredictions)
	require.Len(t, snapshots.inserted, 1)
}
