package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/wagner/internal/models"
)

// addVersion records text as the new active version of a page field
func (s *Store) addVersion(ctx context.Context, tx *sql.Tx, pageID int64, field, text string) (int, error) {
	var last int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) FROM translation_history WHERE page_id = ? AND field = ?
	`, pageID, field).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE translation_history SET is_active = 0 WHERE page_id = ? AND field = ?
	`, pageID, field); err != nil {
		return 0, fmt.Errorf("failed to deactivate history: %w", err)
	}

	next := last + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO translation_history (page_id, field, translation_text, version_number, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, pageID, field, text, next, formatTime(s.now())); err != nil {
		return 0, fmt.Errorf("failed to insert history: %w", err)
	}
	return next, nil
}

func scanHistory(row interface{ Scan(...any) error }) (*models.TranslationHistory, error) {
	var (
		h       models.TranslationHistory
		created string
	)
	if err := row.Scan(&h.ID, &h.PageID, &h.Field, &h.TranslationText, &h.VersionNumber, &h.IsActive, &created); err != nil {
		return nil, err
	}
	h.CreatedAt = parseTime(created)
	return &h, nil
}

const historyColumns = `id, page_id, field, translation_text, version_number, is_active, created_at`

// ListHistory returns the translation versions of a page, newest first.
// An empty field returns both translated fields.
func (s *Store) ListHistory(ctx context.Context, pageID int64, field string) ([]models.TranslationHistory, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}

	query := `SELECT ` + historyColumns + ` FROM translation_history WHERE page_id = ?`
	args := []any{pageID}
	if field != "" {
		query += ` AND field = ?`
		args = append(args, field)
	}
	query += ` ORDER BY field, version_number DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	history := []models.TranslationHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

// ActivateHistory restores a stored version: it becomes the only active version of its field
// and its text is copied back into the page
func (s *Store) ActivateHistory(ctx context.Context, pageID, historyID int64) (*models.Page, error) {
	var page *models.Page
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getPage(ctx, tx, pageID)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM translation_history WHERE id = ? AND page_id = ?`, historyID, pageID)
		h, err := scanHistory(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history %d: %w", historyID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE translation_history SET is_active = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE page_id = ? AND field = ?
		`, h.ID, pageID, h.Field); err != nil {
			return fmt.Errorf("failed to activate history: %w", err)
		}

		sentences := current.Sentences
		var column string
		switch h.Field {
		case models.FieldKorean:
			column = "korean_text"
			if sentences != nil {
				sentences = models.ApplyLines(sentences, "ko", h.TranslationText)
			}
		case models.FieldEnglish:
			column = "english_text"
			if sentences != nil {
				sentences = models.ApplyLines(sentences, "en", h.TranslationText)
			}
		default:
			return fmt.Errorf("unsupported history field %q", h.Field)
		}

		encoded, err := models.EncodeSentences(sentences)
		if err != nil {
			return fmt.Errorf("failed to encode sentences: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pages SET `+column+` = ?, sentences_json = ? WHERE id = ?`, h.TranslationText, encoded, pageID); err != nil {
			return fmt.Errorf("failed to restore history: %w", err)
		}

		page, err = getPage(ctx, tx, pageID)
		return err
	})
	return page, err
}
