package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "yaml", "yml":
		return FormatYAML, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (supported: yaml, jsonl, parquet)", s)
	}
}

// SentenceRow is one aligned sentence of a book, the unit of jsonl and parquet exports
type SentenceRow struct {
	BookID        int64  `parquet:"book_id" json:"book_id"`
	BookTitle     string `parquet:"book_title" json:"book_title"`
	PageID        int64  `parquet:"page_id" json:"page_id"`
	PageNumber    int64  `parquet:"page_number" json:"page_number"`
	SentenceIndex int64  `parquet:"sentence_index" json:"sentence_index"`
	German        string `parquet:"de" json:"de"`
	Korean        string `parquet:"ko" json:"ko"`
	English       string `parquet:"en" json:"en"`
}

// Document is the YAML form of a book
type Document struct {
	Book  BookDoc   `yaml:"book"`
	Pages []PageDoc `yaml:"pages"`
}

type BookDoc struct {
	ID               int64  `yaml:"id"`
	Title            string `yaml:"title"`
	Author           string `yaml:"author,omitempty"`
	OriginalLanguage string `yaml:"original_language"`
	Published        bool   `yaml:"published"`
	CreatedAt        string `yaml:"created_at"`
}

type PageDoc struct {
	PageNumber    int                   `yaml:"page_number"`
	PageType      string                `yaml:"page_type"`
	OriginalImage string                `yaml:"original_image,omitempty"`
	German        string                `yaml:"german"`
	Korean        string                `yaml:"korean"`
	English       string                `yaml:"english"`
	Sentences     []models.Sentence     `yaml:"sentences,omitempty"`
	ContentBlocks []models.ContentBlock `yaml:"content_blocks,omitempty"`
}

// Rows flattens a book into sentence rows. A page without sentence alignment becomes
// a single row holding its full texts.
func Rows(book *models.Book, pages []models.Page) []SentenceRow {
	var rows []SentenceRow
	for _, p := range pages {
		base := SentenceRow{
			BookID:     book.ID,
			BookTitle:  book.Title,
			PageID:     p.ID,
			PageNumber: int64(p.PageNumber),
		}
		if len(p.Sentences) == 0 {
			row := base
			row.German, row.Korean, row.English = p.GermanText, p.KoreanText, p.EnglishText
			rows = append(rows, row)
			continue
		}
		for i, s := range p.Sentences {
			row := base
			row.SentenceIndex = int64(i)
			row.German, row.Korean, row.English = s.De, s.Ko, s.En
			rows = append(rows, row)
		}
	}
	return rows
}

// NewDocument builds the YAML document of a book
func NewDocument(book *models.Book, pages []models.Page) (*Document, error) {
	doc := &Document{
		Book: BookDoc{
			ID:               book.ID,
			Title:            book.Title,
			Author:           book.Author,
			OriginalLanguage: book.OriginalLanguage,
			Published:        book.Published,
			CreatedAt:        book.CreatedAt.Format(time.RFC3339),
		},
		Pages: make([]PageDoc, 0, len(pages)),
	}
	for _, p := range pages {
		blocks, err := models.ParseContentBlocks(p.ContentImages)
		if err != nil {
			return nil, fmt.Errorf("page %d: failed to read content blocks: %w", p.PageNumber, err)
		}
		doc.Pages = append(doc.Pages, PageDoc{
			PageNumber:    p.PageNumber,
			PageType:      p.PageType,
			OriginalImage: p.OriginalImageURL,
			German:        p.GermanText,
			Korean:        p.KoreanText,
			English:       p.EnglishText,
			Sentences:     p.Sentences,
			ContentBlocks: blocks,
		})
	}
	return doc, nil
}

// Write encodes a book and its pages to w
func Write(w io.Writer, format Format, book *models.Book, pages []models.Page) error {
	switch format {
	case FormatYAML:
		doc, err := NewDocument(book, pages)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()

	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, row := range Rows(book, pages) {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("failed to write JSONL row: %w", err)
			}
		}
		return nil

	case FormatParquet:
		writer := parquet.NewGenericWriter[SentenceRow](w)
		if _, err := writer.Write(Rows(book, pages)); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to close parquet writer: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteFile exports a book to path, creating parent directories as needed
func WriteFile(path string, format Format, book *models.Book, pages []models.Page) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(f, format, book, pages); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
