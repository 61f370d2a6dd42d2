package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/wagner/internal/models"
)

// NewPage holds the content of a page appended to a book
type NewPage struct {
	PageType         string            `json:"page_type"`
	GermanText       string            `json:"german_text"`
	KoreanText       string            `json:"korean_text"`
	EnglishText      string            `json:"english_text"`
	Sentences        []models.Sentence `json:"sentences"`
	OriginalImageURL string            `json:"original_image_url"`
	ContentImages    string            `json:"content_images"`
}

// PageUpdate holds the page fields to change; nil fields are left as they are
type PageUpdate struct {
	GermanText  *string            `json:"german_text"`
	KoreanText  *string            `json:"korean_text"`
	EnglishText *string            `json:"english_text"`
	Sentences   *[]models.Sentence `json:"sentences"`
}

const pageColumns = `id, book_id, page_number, page_type, german_text, korean_text, english_text,
	sentences_json, original_image_url, content_images, created_at`

func scanPage(row interface{ Scan(...any) error }) (*models.Page, error) {
	var (
		p         models.Page
		sentences string
		created   string
	)
	err := row.Scan(&p.ID, &p.BookID, &p.PageNumber, &p.PageType, &p.GermanText, &p.KoreanText,
		&p.EnglishText, &sentences, &p.OriginalImageURL, &p.ContentImages, &created)
	if err != nil {
		return nil, err
	}
	p.Sentences = models.DecodeSentences(sentences)
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// GetPage returns a single page
func (s *Store) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	return getPage(ctx, s.db, id)
}

func getPage(ctx context.Context, q querier, id int64) (*models.Page, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// ListPages returns the pages of a book ordered by page number
func (s *Store) ListPages(ctx context.Context, bookID int64) ([]models.Page, error) {
	return listPages(ctx, s.db, bookID)
}

func listPages(ctx context.Context, q querier, bookID int64) ([]models.Page, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE book_id = ? ORDER BY page_number, id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, *page)
	}
	return pages, rows.Err()
}

// LastPage returns the highest-numbered page of a book, or ErrNotFound when it has none
func (s *Store) LastPage(ctx context.Context, bookID int64) (*models.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE book_id = ? ORDER BY page_number DESC, id DESC LIMIT 1`, bookID)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d has no pages: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last page: %w", err)
	}
	return page, nil
}

// AddPage appends a page to a book. Non-empty translations are recorded as history version 1.
func (s *Store) AddPage(ctx context.Context, bookID int64, np NewPage) (*models.Page, error) {
	if np.PageType == "" {
		np.PageType = "text"
	}
	sentences, err := models.EncodeSentences(np.Sentences)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sentences: %w", err)
	}

	var page *models.Page
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBook(ctx, tx, bookID); err != nil {
			return err
		}

		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(page_number), 0) + 1 FROM pages WHERE book_id = ?`, bookID).Scan(&next); err != nil {
			return fmt.Errorf("failed to compute page number: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pages (book_id, page_number, page_type, german_text, korean_text, english_text,
				sentences_json, original_image_url, content_images, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, bookID, next, np.PageType, np.GermanText, np.KoreanText, np.EnglishText,
			sentences, np.OriginalImageURL, np.ContentImages, formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("failed to insert page: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read page id: %w", err)
		}

		if np.KoreanText != "" {
			if _, err := s.addVersion(ctx, tx, id, models.FieldKorean, np.KoreanText); err != nil {
				return err
			}
		}
		if np.EnglishText != "" {
			if _, err := s.addVersion(ctx, tx, id, models.FieldEnglish, np.EnglishText); err != nil {
				return err
			}
		}

		page, err = getPage(ctx, tx, id)
		return err
	})
	return page, err
}

// UpdatePage edits page text. Each edited text is also written line by line into the matching
// sentence field; an explicit sentence list replaces the result. Changed translations are
// recorded as a new active history version.
func (s *Store) UpdatePage(ctx context.Context, id int64, update PageUpdate) (*models.Page, error) {
	var page *models.Page
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getPage(ctx, tx, id)
		if err != nil {
			return err
		}
		sentences := current.Sentences

		if update.KoreanText != nil {
			if *update.KoreanText != current.KoreanText {
				if _, err := s.addVersion(ctx, tx, id, models.FieldKorean, *update.KoreanText); err != nil {
					return err
				}
			}
			current.KoreanText = *update.KoreanText
			if sentences != nil {
				sentences = models.ApplyLines(sentences, "ko", current.KoreanText)
			}
		}
		if update.EnglishText != nil {
			if *update.EnglishText != current.EnglishText {
				if _, err := s.addVersion(ctx, tx, id, models.FieldEnglish, *update.EnglishText); err != nil {
					return err
				}
			}
			current.EnglishText = *update.EnglishText
			if sentences != nil {
				sentences = models.ApplyLines(sentences, "en", current.EnglishText)
			}
		}
		if update.GermanText != nil {
			current.GermanText = *update.GermanText
			if sentences != nil {
				sentences = models.ApplyLines(sentences, "de", current.GermanText)
			}
		}
		if update.Sentences != nil {
			sentences = *update.Sentences
		}

		encoded, err := models.EncodeSentences(sentences)
		if err != nil {
			return fmt.Errorf("failed to encode sentences: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE pages SET german_text = ?, korean_text = ?, english_text = ?, sentences_json = ? WHERE id = ?
		`, current.GermanText, current.KoreanText, current.EnglishText, encoded, id)
		if err != nil {
			return fmt.Errorf("failed to update page: %w", err)
		}

		page, err = getPage(ctx, tx, id)
		return err
	})
	return page, err
}

// DeletePage removes a page and renumbers the remaining pages of its book from 1
func (s *Store) DeletePage(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		page, err := getPage(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete page: %w", err)
		}

		return renumber(ctx, tx, page.BookID)
	})
}

func renumber(ctx context.Context, tx *sql.Tx, bookID int64) error {
	remaining, err := listPages(ctx, tx, bookID)
	if err != nil {
		return err
	}
	for idx, p := range remaining {
		if p.PageNumber == idx+1 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pages SET page_number = ? WHERE id = ?`, idx+1, p.ID); err != nil {
			return fmt.Errorf("failed to renumber page %d: %w", p.ID, err)
		}
	}
	return nil
}

// MovePage swaps a page with its neighbour. direction is "up" or "down"; anything else,
// or a move past either end of the book, leaves the order unchanged.
// Returns the book's pages in their new order.
func (s *Store) MovePage(ctx context.Context, id int64, direction string) ([]models.Page, error) {
	var pages []models.Page
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		page, err := getPage(ctx, tx, id)
		if err != nil {
			return err
		}

		target := 0
		switch direction {
		case "up":
			if page.PageNumber > 1 {
				target = page.PageNumber - 1
			}
		case "down":
			target = page.PageNumber + 1
		}

		if target > 0 {
			var swapID int64
			err := tx.QueryRowContext(ctx, `SELECT id FROM pages WHERE book_id = ? AND page_number = ? LIMIT 1`, page.BookID, target).Scan(&swapID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("failed to find neighbour page: %w", err)
			default:
				if _, err := tx.ExecContext(ctx, `UPDATE pages SET page_number = ? WHERE id = ?`, page.PageNumber, swapID); err != nil {
					return fmt.Errorf("failed to move page: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `UPDATE pages SET page_number = ? WHERE id = ?`, target, id); err != nil {
					return fmt.Errorf("failed to move page: %w", err)
				}
			}
		}

		pages, err = listPages(ctx, tx, page.BookID)
		return err
	})
	return pages, err
}

// ApplyRetranslation stores a fresh translation of the page and versions both translated fields.
// Returns the updated page and the new Korean version number.
func (s *Store) ApplyRetranslation(ctx context.Context, id int64, sentences []models.Sentence) (*models.Page, int, error) {
	korean := models.JoinKorean(sentences)
	english := models.JoinEnglish(sentences)
	encoded, err := models.EncodeSentences(sentences)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode sentences: %w", err)
	}

	var (
		page    *models.Page
		version int
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPage(ctx, tx, id); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE pages SET korean_text = ?, english_text = ?, sentences_json = ? WHERE id = ?
		`, korean, english, encoded, id)
		if err != nil {
			return fmt.Errorf("failed to update page: %w", err)
		}

		version, err = s.addVersion(ctx, tx, id, models.FieldKorean, korean)
		if err != nil {
			return err
		}
		if _, err := s.addVersion(ctx, tx, id, models.FieldEnglish, english); err != nil {
			return err
		}

		page, err = getPage(ctx, tx, id)
		return err
	})
	return page, version, err
}

// UpdateContentImages replaces the stored content blocks of a page
func (s *Store) UpdateContentImages(ctx context.Context, id int64, blocks []models.ContentBlock) (*models.Page, error) {
	encoded, err := models.EncodeContentBlocks(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content blocks: %w", err)
	}

	var page *models.Page
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPage(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pages SET content_images = ? WHERE id = ?`, encoded, id); err != nil {
			return fmt.Errorf("failed to update content images: %w", err)
		}
		var err error
		page, err = getPage(ctx, tx, id)
		return err
	})
	return page, err
}
