package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	apperrors "github.com/iMan-sources/sentiment-analysis/internal/errors"
)

// commentView is the JSON shape for comments. Sentiment stays an explicit
// null until inference has committed a label.
type commentView struct {
	ID        string  `json:"id"`
	BookID    string  `json:"book_id"`
	UserID    string  `json:"user_id"`
	UserName  string  `json:"user_name"`
	Content   string  `json:"content"`
	Sentiment *string `json:"sentiment"`
	CreatedAt string  `json:"created_at"`
}

type bookView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	CreatedAt   string  `json:"created_at"`
}

type createCommentRequest struct {
	Content  string `json:"content"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

type correctSentimentRequest struct {
	Sentiment string `json:"sentiment"`
}

func toBookView(book *domain.Book) bookView {
	return bookView{
		ID:          book.ID.String(),
		Title:       book.Title,
		Author:      book.Author,
		Price:       book.Price,
		Description: book.Description,
		ImageURL:    book.ImageURL,
		CreatedAt:   book.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toCommentView(comment *domain.Comment) commentView {
	return commentView{
		ID:        comment.ID.String(),
		BookID:    comment.BookID.String(),
		UserID:    comment.UserID,
		UserName:  comment.UserName,
		Content:   comment.Content,
		Sentiment: comment.Sentiment,
		CreatedAt: comment.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid " + name + " parameter")
	}
	return id, nil
}

func (s *Server) handleListBooks(c echo.Context) error {
	books, err := s.app.Books(c.Request().Context())
	if err != nil {
		return err
	}

	views := make([]bookView, 0, len(books))
	for i := range books {
		views = append(views, toBookView(&books[i]))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetBook(c echo.Context) error {
	bookID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	book, err := s.app.Book(c.Request().Context(), bookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookView(book))
}

func (s *Server) handleBookComments(c echo.Context) error {
	bookID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	comments, err := s.app.BookComments(c.Request().Context(), bookID, c.QueryParam("sentiment"))
	if err != nil {
		return err
	}

	views := make([]commentView, 0, len(comments))
	for i := range comments {
		views = append(views, toCommentView(&comments[i]))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateComment(c echo.Context) error {
	bookID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	comment, err := s.app.CreateComment(c.Request().Context(), bookID, req.UserID, req.UserName, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCommentView(comment))
}

func (s *Server) handleCorrectSentiment(c echo.Context) error {
	commentID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req correctSentimentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	comment, err := s.app.CorrectSentiment(c.Request().Context(), commentID, req.Sentiment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCommentView(comment))
}

func (s *Server) handleBookSentimentStats(c echo.Context) error {
	bookID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	stats, err := s.app.SentimentStats(c.Request().Context(), &bookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGlobalSentimentStats(c echo.Context) error {
	stats, err := s.app.SentimentStats(c.Request().Context(), nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
