// Package ledger records human-corrected mispredictions into monthly CSV
// partitions used as retraining data. Rows are append-only; periodic
// compaction keeps only the latest correction per comment.
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

var header = []string{"timestamp", "text", "predicted_sentiment", "correct_sentiment", "confidence_score", "comment_id"}

// compactEvery is the number of appends to a partition before it gets
// compacted in place.
const compactEvery = 64

// Entry is one misprediction row in a partition.
type Entry struct {
	Timestamp          time.Time
	Text               string
	PredictedSentiment string
	CorrectSentiment   string
	ConfidenceScore    float64
	CommentID          uuid.UUID
}

// Stats summarizes the current partition after last-wins deduplication.
type Stats struct {
	TotalEntries     int    `json:"total_entries"`
	UniqueComments   int    `json:"unique_comments"`
	CurrentPartition string `json:"current_partition"`
}

// Ledger writes misprediction rows to dir, one CSV file per calendar month.
// All file access is serialized through a mutex.
type Ledger struct {
	dir         string
	predictions domain.PredictionRepository
	clock       clockwork.Clock

	mu      sync.Mutex
	appends int
}

func New(dir string, predictions domain.PredictionRepository, clock clockwork.Clock) *Ledger {
	return &Ledger{
		dir:         dir,
		predictions: predictions,
		clock:       clock,
	}
}

// RecordIfMispredicted compares the corrected label against the most recent
// model prediction for the comment and appends a ledger row only when they
// disagree. A comment without any prediction log is skipped silently: there is
// no model output to learn from.
func (l *Ledger) RecordIfMispredicted(ctx context.Context, commentID uuid.UUID, corrected string) error {
	prediction, err := l.predictions.LatestByComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrediction) {
			return nil
		}
		return fmt.Errorf("failed to load latest prediction: %w", err)
	}

	if strings.EqualFold(prediction.PredictedSentiment, corrected) {
		return nil
	}

	entry := Entry{
		Timestamp:          l.clock.Now().UTC(),
		Text:               prediction.Text,
		PredictedSentiment: prediction.PredictedSentiment,
		CorrectSentiment:   strings.ToLower(corrected),
		ConfidenceScore:    prediction.ConfidenceScore,
		CommentID:          commentID,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendLocked(entry); err != nil {
		return err
	}
	metrics.LedgerAppendsTotal.Inc()

	l.appends++
	if l.appends >= compactEvery {
		l.appends = 0
		if err := l.compactLocked(); err != nil {
			slog.Warn("Ledger compaction failed", "error", err)
		}
	}

	slog.Info("Misprediction recorded",
		"comment_id", commentID,
		"predicted", entry.PredictedSentiment,
		"corrected", entry.CorrectSentiment)
	return nil
}

// Compact rewrites the current month's partition keeping only the latest row
// per comment.
func (l *Ledger) Compact() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends = 0
	return l.compactLocked()
}

// Entries returns the current partition's rows after last-wins deduplication
// per comment, in file order.
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readLocked()
	if err != nil {
		return nil, err
	}
	return dedupe(entries), nil
}

// Stats reports the size of the current partition.
func (l *Ledger) Stats() (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readLocked()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalEntries:     len(entries),
		UniqueComments:   len(dedupe(entries)),
		CurrentPartition: filepath.Base(l.partitionPath()),
	}, nil
}

func (l *Ledger) partitionPath() string {
	name := fmt.Sprintf("sentiment_errors_%s.csv", l.clock.Now().UTC().Format("200601"))
	return filepath.Join(l.dir, name)
}

func (l *Ledger) appendLocked(entry Entry) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	path := l.partitionPath()
	_, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger partition: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	if err := w.Write(entry.record()); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger row: %w", err)
	}
	return nil
}

func (l *Ledger) compactLocked() error {
	entries, err := l.readLocked()
	if err != nil {
		return err
	}
	deduped := dedupe(entries)
	if len(deduped) == len(entries) {
		return nil
	}

	path := l.partitionPath()
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, entry := range deduped {
		if err := w.Write(entry.record()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush compaction file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close compaction file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to swap compacted partition: %w", err)
	}

	metrics.LedgerCompactionsTotal.Inc()
	slog.Info("Ledger partition compacted",
		"partition", filepath.Base(path),
		"before", len(entries),
		"after", len(deduped))
	return nil
}

func (l *Ledger) readLocked() ([]Entry, error) {
	f, err := os.Open(l.partitionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger partition: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger partition: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, record := range records[1:] {
		entry, err := parseRecord(record)
		if err != nil {
			slog.Warn("Skipping malformed ledger row", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// dedupe keeps only the last row per comment, preserving the order of each
// comment's final occurrence.
func dedupe(entries []Entry) []Entry {
	last := make(map[uuid.UUID]int, len(entries))
	for i, entry := range entries {
		last[entry.CommentID] = i
	}

	result := make([]Entry, 0, len(last))
	for i, entry := range entries {
		if last[entry.CommentID] == i {
			result = append(result, entry)
		}
	}
	return result
}

func (e Entry) record() []string {
	return []string{
		e.Timestamp.Format(time.RFC3339),
		e.Text,
		e.PredictedSentiment,
		e.CorrectSentiment,
		strconv.FormatFloat(e.ConfidenceScore, 'f', -1, 64),
		e.CommentID.String(),
	}
}

func parseRecord(record []string) (Entry, error) {
	if len(record) != len(header) {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", len(header), len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid timestamp %q: %w", record[0], err)
	}
	score, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid confidence score %q: %w", record[4], err)
	}
	commentID, err := uuid.Parse(record[5])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid comment id %q: %w", record[5], err)
	}

	return Entry{
		Timestamp:          ts,
		Text:               record[1],
		PredictedSentiment: record[2],
		CorrectSentiment:   record[3],
		ConfidenceScore:    score,
		CommentID:          commentID,
	}, nil
}
