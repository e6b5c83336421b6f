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

// bookColumns must match the Scan order in scanBook.
const bookColumns = `id, title, author, price, description, image_url, created_at`

// BookRepo implements domain.BookRepository backed by PostgreSQL.
type BookRepo struct {
	pool *pgxpool.Pool
}

func NewBookRepo(pool *pgxpool.Pool) *BookRepo {
	return &BookRepo{pool: pool}
}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var book domain.Book
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.Price,
		&book.Description, &book.ImageURL, &book.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *BookRepo) List(ctx context.Context) ([]domain.Book, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

func (r *BookRepo) GetByID(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	book, err := scanBook(r.pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// Insert adds a book to the catalog. Used by seeding and tests.
func (r *BookRepo) Insert(ctx context.Context, book *domain.Book) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO books (title, author, price, description, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, book.Title, book.Author, book.Price, book.Description, book.ImageURL).
		Scan(&book.ID, &book.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}
