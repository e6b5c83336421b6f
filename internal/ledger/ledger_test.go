package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

type fakePredictionRepo struct {
	logs map[uuid.UUID]*domain.PredictionLog
}

func (f *fakePredictionRepo) Insert(_ context.Context, _ *domain.PredictionLog) error { return nil }

func (f *fakePredictionRepo) LatestByComment(_ context.Context, commentID uuid.UUID) (*domain.PredictionLog, error) {
	log, ok := f.logs[commentID]
	if !ok {
		return nil, domain.ErrNoPrediction
	}
	return log, nil
}

func (f *fakePredictionRepo) ListSince(_ context.Context, _ time.Time) ([]domain.PredictionLog, error) {
	return nil, nil
}

func (f *fakePredictionRepo) ListConfirmedPairsSince(_ context.Context, _ time.Time) ([]domain.ConfirmedPair, error) {
	return nil, nil
}

func newTestLedger(t *testing.T) (*Ledger, *fakePredictionRepo, *clockwork.FakeClock, string) {
	t.Helper()
	dir := t.TempDir()
	repo := &fakePredictionRepo{logs: make(map[uuid.UUID]*domain.PredictionLog)}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	return New(dir, repo, clock), repo, clock, dir
}

func addPrediction(repo *fakePredictionRepo, commentID uuid.UUID, sentiment string) {
	repo.logs[commentID] = &domain.PredictionLog{
		ID:                 uuid.New(),
		CommentID:          commentID,
		Text:               "the review text",
		PredictedSentiment: sentiment,
		ConfidenceScore:    0.82,
	}
}

func TestRecordIfMispredictedAppendsOnDisagreement(t *testing.T) {
	ledger, repo, _, dir := newTestLedger(t)
	commentID := uuid.New()
	addPrediction(repo, commentID, domain.SentimentPositive)

	err := ledger.RecordIfMispredicted(context.Background(), commentID, domain.SentimentNegative)
	require.NoError(t, err)

	entries, err := ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, commentID, entry.CommentID)
	assert.Equal(t, "the review text", entry.Text)
	assert.Equal(t, domain.SentimentPositive, entry.PredictedSentiment)
	assert.Equal(t, domain.SentimentNegative, entry.CorrectSentiment)
	assert.Equal(t, 0.82, entry.ConfidenceScore)

	// Partition is named after the clock's current month.
	_, err = os.Stat(filepath.Join(dir, "sentiment_errors_202503.csv"))
	assert.NoError(t, err)
}

func TestRecordIfMispredictedSkipsAgreement(t *testing.T) {
	ledger, repo, _, _ := newTestLedger(t)
	commentID := uuid.New()
	addPrediction(repo, commentID, domain.SentimentPositive)

	// Case-insensitive agreement is not a misprediction.
	err := ledger.RecordIfMispredicted(context.Background(), commentID, "POSITIVE")
	require.NoError(t, err)

	entries, err := ledger.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordIfMispredictedSkipsCommentsWithoutPrediction(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)

	err := ledger.RecordIfMispredicted(context.Background(), uuid.New(), domain.SentimentNegative)
	require.NoError(t, err)

	entries, err := ledger.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesDeduplicateLastWins(t *testing.T) {
	ledger, repo, _, _ := newTestLedger(t)
	commentID := uuid.New()

	addPrediction(repo, commentID, domain.SentimentPositive)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), commentID, domain.SentimentNegative))

	// The user flips their correction back.
	addPrediction(repo, commentID, domain.SentimentNegative)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), commentID, domain.SentimentPositive))

	entries, err := ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SentimentPositive, entries[0].CorrectSentiment)
}

func TestCompactRewritesPartition(t *testing.T) {
	ledger, repo, _, dir := newTestLedger(t)
	commentID := uuid.New()

	addPrediction(repo, commentID, domain.SentimentPositive)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), commentID, domain.SentimentNegative))
	addPrediction(repo, commentID, domain.SentimentNegative)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), commentID, domain.SentimentPositive))

	stats, err := ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.UniqueComments)

	require.NoError(t, ledger.Compact())

	stats, err = ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.UniqueComments)
	assert.Equal(t, "sentiment_errors_202503.csv", stats.CurrentPartition)

	// Rows on disk: header plus one entry.
	data, err := os.ReadFile(filepath.Join(dir, "sentiment_errors_202503.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp,text,predicted_sentiment,correct_sentiment,confidence_score,comment_id")
}

func TestMonthRolloverStartsNewPartition(t *testing.T) {
	ledger, repo, clock, dir := newTestLedger(t)

	first := uuid.New()
	addPrediction(repo, first, domain.SentimentPositive)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), first, domain.SentimentNegative))

	clock.Advance(31 * 24 * time.Hour)

	second := uuid.New()
	addPrediction(repo, second, domain.SentimentPositive)
	require.NoError(t, ledger.RecordIfMispredicted(context.Background(), second, domain.SentimentNegative))

	_, err := os.Stat(filepath.Join(dir, "sentiment_errors_202503.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sentiment_errors_202504.csv"))
	assert.NoError(t, err)

	// Entries only reads the current partition.
	entries, err := ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].CommentID)
}
