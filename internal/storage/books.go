package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/models"
)

// BookUpdate holds the book fields to change; nil fields are left as they are
type BookUpdate struct {
	Title            *string `json:"title"`
	Author           *string `json:"author"`
	OriginalLanguage *string `json:"original_language"`
	Published        *bool   `json:"published"`
}

const bookColumns = `b.id, b.title, b.author, b.original_language, b.created_at, b.published,
	(SELECT COUNT(*) FROM pages p WHERE p.book_id = b.id)`

func scanBook(row interface{ Scan(...any) error }) (*models.Book, error) {
	var (
		b       models.Book
		created string
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.OriginalLanguage, &created, &b.Published, &b.PageCount); err != nil {
		return nil, err
	}
	b.CreatedAt = parseTime(created)
	return &b, nil
}

// CreateBook inserts a new book, applying defaults for empty title and language
func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		book.Title = "Untitled"
	}
	if book.OriginalLanguage == "" {
		book.OriginalLanguage = "german"
	}
	book.CreatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, author, original_language, created_at, published)
		VALUES (?, ?, ?, ?, ?)
	`, book.Title, book.Author, book.OriginalLanguage, formatTime(book.CreatedAt), book.Published)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read book id: %w", err)
	}
	book.ID = id
	book.PageCount = 0
	return nil
}

// GetBook returns a book with its page count
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return getBook(ctx, s.db, id)
}

func getBook(ctx context.Context, q querier, id int64) (*models.Book, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// ListBooks returns all books in creation order
func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books b ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// UpdateBook changes the given fields of a book
func (s *Store) UpdateBook(ctx context.Context, id int64, update BookUpdate) (*models.Book, error) {
	var book *models.Book
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBook(ctx, tx, id)
		if err != nil {
			return err
		}
		if update.Title != nil && strings.TrimSpace(*update.Title) != "" {
			current.Title = *update.Title
		}
		if update.Author != nil {
			current.Author = *update.Author
		}
		if update.OriginalLanguage != nil && *update.OriginalLanguage != "" {
			current.OriginalLanguage = *update.OriginalLanguage
		}
		if update.Published != nil {
			current.Published = *update.Published
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE books SET title = ?, author = ?, original_language = ?, published = ? WHERE id = ?
		`, current.Title, current.Author, current.OriginalLanguage, current.Published, id)
		if err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		book = current
		return nil
	})
	return book, err
}

// DeleteBook removes a book together with its pages and their history
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return nil
}
