package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
)

type fakeBookRepo struct {
	books map[uuid.UUID]*domain.Book
}

func (f *fakeBookRepo) List(_ context.Context) ([]domain.Book, error) {
	out := make([]domain.Book, 0, len(f.books))
	for _, b := range f.books {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBookRepo) GetByID(_ context.Context, bookID uuid.UUID) (*domain.Book, error) {
	b, ok := f.books[bookID]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return b, nil
}

type fakeCommentRepo struct {
	comments map[uuid.UUID]*domain.Comment
	stats    domain.SentimentStats
}

func (f *fakeCommentRepo) Create(_ context.Context, _ *domain.Comment) error { return nil }

func (f *fakeCommentRepo) GetByID(_ context.Context, commentID uuid.UUID) (*domain.Comment, error) {
	c, ok := f.comments[commentID]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	return c, nil
}

func (f *fakeCommentRepo) UpdateSentiment(_ context.Context, _ uuid.UUID, _ string) (*domain.Comment, error) {
	return nil, domain.ErrCommentNotFound
}

func (f *fakeCommentRepo) ListByBook(_ context.Context, _ uuid.UUID) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) ListRecentWithSentiment(_ context.Context, _ int) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) SentimentStats(_ context.Context, _ *uuid.UUID) (domain.SentimentStats, error) {
	return f.stats, nil
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ time.Duration) (*domain.MetricsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &domain.MetricsSnapshot{}, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []string
}

func (f *fakeRecorder) RecordIfMispredicted(_ context.Context, _ uuid.UUID, corrected string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, corrected)
	return nil
}

func (f *fakeRecorder) labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recorded...)
}

type hubFixture struct {
	hub       *Hub
	books     *fakeBookRepo
	comments  *fakeCommentRepo
	refresher *fakeRefresher
	recorder  *fakeRecorder
	dial      func() *ws.Conn

	mu          sync.Mutex
	serverConns []*ws.Conn
}

// serverSide returns the server half of the i-th accepted connection.
func (f *hubFixture) serverSide(i int) *ws.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serverConns[i]
}

// testHub sets up a Hub behind a test HTTP server with a real upgrade path.
func testHub(t *testing.T, maxClients int) *hubFixture {
	t.Helper()

	books := &fakeBookRepo{books: make(map[uuid.UUID]*domain.Book)}
	comments := &fakeCommentRepo{comments: make(map[uuid.UUID]*domain.Comment)}
	refresher := &fakeRefresher{}
	recorder := &fakeRecorder{}

	h := New(books, comments, refresher, recorder, clockwork.NewRealClock(), maxClients)
	t.Cleanup(h.Stop)

	f := &hubFixture{hub: h, books: books, comments: comments, refresher: refresher, recorder: recorder}

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.mu.Lock()
		f.serverConns = append(f.serverConns, conn)
		f.mu.Unlock()
		if err := h.Register(conn); err != nil {
			return
		}

		go func() {
			defer h.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	f.dial = func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return f
}

func waitForClientCount(h *Hub, expected int) bool {
	for range 100 {
		if h.ClientCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func readEvent(t *testing.T, conn *ws.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	return event.Type, event.Data
}

func classifiedComment(sentiment string) domain.Event {
	return domain.Event{
		Type: domain.EventNewComment,
		Data: domain.NewCommentPayload{
			ID:        uuid.New(),
			BookID:    uuid.New(),
			UserID:    "u1",
			UserName:  "alice",
			Content:   "great read",
			Sentiment: &sentiment,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestHubBroadcastsCommentThenStats(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	f.hub.Broadcast(classifiedComment(domain.SentimentPositive))

	eventType, data := readEvent(t, conn)
	assert.Equal(t, domain.EventNewComment, eventType)

	var comment domain.NewCommentPayload
	require.NoError(t, json.Unmarshal(data, &comment))
	assert.Equal(t, "great read", comment.Content)
	require.NotNil(t, comment.Sentiment)
	assert.Equal(t, domain.SentimentPositive, *comment.Sentiment)

	eventType, data = readEvent(t, conn)
	assert.Equal(t, domain.EventStats, eventType)

	var stats domain.StatsPayload
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 1, stats.Positive)
	assert.Equal(t, 0, stats.Negative)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 100.0, stats.PositivePercentage)
}

func TestHubUnclassifiedCommentSkipsStats(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	f.hub.Broadcast(domain.Event{
		Type: domain.EventNewComment,
		Data: domain.NewCommentPayload{ID: uuid.New(), Content: "pending", Sentiment: nil},
	})
	f.hub.Broadcast(classifiedComment(domain.SentimentNegative))

	eventType, _ := readEvent(t, conn)
	assert.Equal(t, domain.EventNewComment, eventType)

	// Next message is the second comment, not a stats event for the first.
	eventType, _ = readEvent(t, conn)
	assert.Equal(t, domain.EventNewComment, eventType)

	eventType, data := readEvent(t, conn)
	assert.Equal(t, domain.EventStats, eventType)

	var stats domain.StatsPayload
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 0, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.Equal(t, 1, stats.Total)
}

func TestHubMultipleClientsReceiveBroadcast(t *testing.T) {
	f := testHub(t, 16)
	conn1 := f.dial()
	conn2 := f.dial()
	require.True(t, waitForClientCount(f.hub, 2))

	f.hub.Broadcast(classifiedComment(domain.SentimentPositive))

	for _, conn := range []*ws.Conn{conn1, conn2} {
		eventType, _ := readEvent(t, conn)
		assert.Equal(t, domain.EventNewComment, eventType)
		eventType, _ = readEvent(t, conn)
		assert.Equal(t, domain.EventStats, eventType)
	}
}

func TestHubBroadcastSurvivesFailedConnection(t *testing.T) {
	f := testHub(t, 16)
	healthy := f.dial()
	f.dial()
	require.True(t, waitForClientCount(f.hub, 2))

	// Kill the second connection's transport so delivery to it fails.
	require.NoError(t, f.serverSide(1).NetConn().Close())

	f.hub.Broadcast(classifiedComment(domain.SentimentPositive))

	// The remaining client still receives the full comment-then-stats pair.
	eventType, _ := readEvent(t, healthy)
	assert.Equal(t, domain.EventNewComment, eventType)
	eventType, data := readEvent(t, healthy)
	assert.Equal(t, domain.EventStats, eventType)

	var stats domain.StatsPayload
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 1, stats.Total)

	// The dead connection is removed from the hub.
	assert.True(t, waitForClientCount(f.hub, 1))
}

func TestHubRejectsClientsOverLimit(t *testing.T) {
	f := testHub(t, 1)
	f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	// The server closes the second connection after the failed register.
	conn := f.dial()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.True(t, waitForClientCount(f.hub, 1))
}

func TestHubLiveStatsTracksCounters(t *testing.T) {
	f := testHub(t, 16)

	f.hub.Broadcast(classifiedComment(domain.SentimentPositive))
	f.hub.Broadcast(classifiedComment(domain.SentimentPositive))
	f.hub.Broadcast(classifiedComment(domain.SentimentNegative))

	assert.Eventually(t, func() bool {
		return f.hub.LiveStats().Total == 3
	}, time.Second, 5*time.Millisecond)

	stats := f.hub.LiveStats()
	assert.Equal(t, 2, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.InDelta(t, 66.6, stats.PositivePercentage, 0.1)
}

func TestBroadcastSentimentCorrection(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	book := &domain.Book{ID: uuid.New(), Title: "The Go Programming Language"}
	f.books.books[book.ID] = book

	sentiment := domain.SentimentPositive
	comment := &domain.Comment{
		ID:        uuid.New(),
		BookID:    book.ID,
		UserID:    "u1",
		UserName:  "alice",
		Content:   "changed my mind, liked it",
		Sentiment: &sentiment,
	}
	f.comments.comments[comment.ID] = comment

	f.hub.BroadcastSentimentCorrection(context.Background(), comment.ID, domain.SentimentPositive)

	eventType, data := readEvent(t, conn)
	assert.Equal(t, domain.EventReviewUpdated, eventType)

	var payload domain.ReviewUpdatedPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, comment.ID, payload.ID)
	assert.Equal(t, "The Go Programming Language", payload.BookTitle)
	assert.Equal(t, domain.SentimentPositive, payload.Sentiment)
	assert.False(t, payload.IsEditing)

	assert.Equal(t, 1, f.refresher.callCount())
	assert.Equal(t, []string{domain.SentimentPositive}, f.recorder.labels())
}

func TestBroadcastSentimentCorrectionUnknownCommentIsNoop(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	f.hub.BroadcastSentimentCorrection(context.Background(), uuid.New(), domain.SentimentNegative)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Empty(t, f.recorder.labels())
}

func TestBroadcastBookStats(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	book := &domain.Book{ID: uuid.New(), Title: "Dune"}
	f.books.books[book.ID] = book
	f.comments.stats = domain.SentimentStats{Total: 2, Positive: 1, Negative: 1, PositivePercentage: 50, NegativePercentage: 50}

	f.hub.BroadcastBookStats(context.Background())

	eventType, data := readEvent(t, conn)
	assert.Equal(t, domain.EventBookStats, eventType)

	var entries []domain.BookStatsEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Dune", entries[0].Title)
	assert.Equal(t, 2, entries[0].Stats.Total)
}

func TestHubStopClosesClients(t *testing.T) {
	f := testHub(t, 16)
	conn := f.dial()
	require.True(t, waitForClientCount(f.hub, 1))

	f.hub.Stop()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure))
}
