package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sentiment labels. Stored lowercase; comparisons are case-insensitive.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
)

// --- Model types ---

type Book struct {
	ID          uuid.UUID `db:"id"`
	Title       string    `db:"title"`
	Author      string    `db:"author"`
	Price       float64   `db:"price"`
	Description string    `db:"description"`
	ImageURL    string    `db:"image_url"`
	CreatedAt   time.Time `db:"created_at"`
}

// Comment is a user review on a book. Sentiment is nil until the first
// inference completes and may be overwritten by later human corrections.
type Comment struct {
	ID        uuid.UUID `db:"id"`
	BookID    uuid.UUID `db:"book_id"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	Content   string    `db:"content"`
	Sentiment *string   `db:"sentiment"`
	CreatedAt time.Time `db:"created_at"`
}

// PredictionLog is one append-only record per inference attempt.
type PredictionLog struct {
	ID                 uuid.UUID `db:"id"`
	CommentID          uuid.UUID `db:"comment_id"`
	Text               string    `db:"text"`
	PredictedSentiment string    `db:"predicted_sentiment"`
	ConfidenceScore    float64   `db:"confidence_score"`
	ResponseTime       float64   `db:"response_time"` // milliseconds
	CreatedAt          time.Time `db:"created_at"`
}

// MetricsSnapshot is an immutable point-in-time aggregate over a window of
// prediction logs. Snapshots form an append-only time series.
type MetricsSnapshot struct {
	ID                 uuid.UUID `db:"id"`
	CreatedAt          time.Time `db:"created_at"`
	TotalPredictions   int       `db:"total_predictions"`
	PositiveCount      int       `db:"positive_count"`
	NegativeCount      int       `db:"negative_count"`
	CorrectPredictions int       `db:"correct_predictions"`
	Accuracy           float64   `db:"accuracy"`
	AvgConfidence      float64   `db:"avg_confidence"`
	MinConfidence      float64   `db:"min_confidence"`
	MaxConfidence      float64   `db:"max_confidence"`
	AvgResponseTime    float64   `db:"avg_response_time"`
}

// ConfirmedPair joins a model prediction with the human-visible sentiment of
// its owning comment. Used to measure accuracy.
type ConfirmedPair struct {
	Predicted string
	Confirmed string
}

// Prediction is the result of scoring a single text.
type Prediction struct {
	Sentiment  string
	Score      float64
	Confidence string
}

// SentimentStats are live counts derived straight from the comments table.
type SentimentStats struct {
	Total              int     `json:"total"`
	Positive           int     `json:"positive"`
	Negative           int     `json:"negative"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
}

// --- Dashboard view ---

type ModelPerformance struct {
	Accuracy         float64 `json:"accuracy"`
	TotalPredictions int     `json:"total_predictions"`
	AvgResponseTime  string  `json:"avg_response_time"`
}

type SentimentDistribution struct {
	Positive           int     `json:"positive"`
	Negative           int     `json:"negative"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
}

type RecentCorrection struct {
	Content            string    `json:"content"`
	CorrectedSentiment string    `json:"corrected_sentiment"`
	Timestamp          time.Time `json:"timestamp"`
}

type DashboardView struct {
	ModelPerformance      ModelPerformance      `json:"model_performance"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	RecentCorrections     []RecentCorrection    `json:"recent_corrections"`
}

// --- Interfaces ---

// BookRepository abstracts book catalog reads. Catalog mutation is owned by a
// separate management surface and is out of scope here.
type BookRepository interface {
	List(ctx context.Context) ([]Book, error)
	GetByID(ctx context.Context, bookID uuid.UUID) (*Book, error)
}

// CommentRepository abstracts comment persistence.
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	GetByID(ctx context.Context, commentID uuid.UUID) (*Comment, error)
	UpdateSentiment(ctx context.Context, commentID uuid.UUID, sentiment string) (*Comment, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]Comment, error)
	ListRecentWithSentiment(ctx context.Context, limit int) ([]Comment, error)
	SentimentStats(ctx context.Context, bookID *uuid.UUID) (SentimentStats, error)
}

// PredictionRepository abstracts the append-only prediction log.
type PredictionRepository interface {
	Insert(ctx context.Context, log *PredictionLog) error
	LatestByComment(ctx context.Context, commentID uuid.UUID) (*PredictionLog, error)
	ListSince(ctx context.Context, since time.Time) ([]PredictionLog, error)
	ListConfirmedPairsSince(ctx context.Context, since time.Time) ([]ConfirmedPair, error)
}

// SnapshotRepository abstracts the metrics snapshot time series.
type SnapshotRepository interface {
	Insert(ctx context.Context, snapshot *MetricsSnapshot) error
	Latest(ctx context.Context) (*MetricsSnapshot, error)
}

// Scorer scores a text. Implementations never fail: on any internal problem
// they return a deterministic fallback prediction instead.
type Scorer interface {
	Score(text string) Prediction
}

// MetricsRefresher recomputes and persists a metrics snapshot. A non-positive
// window selects the implementation's default.
type MetricsRefresher interface {
	Refresh(ctx context.Context, window time.Duration) (*MetricsSnapshot, error)
}

// CorrectionRecorder logs human corrections of mispredictions for retraining.
type CorrectionRecorder interface {
	RecordIfMispredicted(ctx context.Context, commentID uuid.UUID, corrected string) error
}

// Broadcaster fans events out to all live subscriber connections. All methods
// are best-effort: delivery failures are logged, never returned.
type Broadcaster interface {
	Broadcast(event Event)
	BroadcastSentimentCorrection(ctx context.Context, commentID uuid.UUID, sentiment string)
	BroadcastBookStats(ctx context.Context)
}

// AppService is the application layer contract. Handlers route all
// operations through here.
type AppService interface {
	Books(ctx context.Context) ([]Book, error)
	Book(ctx context.Context, bookID uuid.UUID) (*Book, error)
	BookComments(ctx context.Context, bookID uuid.UUID, sentiment string) ([]Comment, error)
	CreateComment(ctx context.Context, bookID uuid.UUID, userID, userName, content string) (*Comment, error)
	CorrectSentiment(ctx context.Context, commentID uuid.UUID, sentiment string) (*Comment, error)
	SentimentStats(ctx context.Context, bookID *uuid.UUID) (SentimentStats, error)
	DashboardMetrics(ctx context.Context) (*DashboardView, error)
}
