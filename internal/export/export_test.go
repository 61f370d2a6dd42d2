package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

func testBook() (*models.Book, []models.Page) {
	book := &models.Book{
		ID:               3,
		Title:            "Oper und Drama",
		Author:           "Richard Wagner",
		OriginalLanguage: "german",
		CreatedAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	pages := []models.Page{
		{
			ID:          10,
			BookID:      3,
			PageNumber:  1,
			PageType:    "text",
			GermanText:  "Das Werk. Es lebt.",
			KoreanText:  "작품.\n살아있다.",
			EnglishText: "The work.\nIt lives.",
			Sentences: []models.Sentence{
				{De: "Das Werk.", Ko: "작품.", En: "The work."},
				{De: "Es lebt.", Ko: "살아있다.", En: "It lives."},
			},
		},
		{
			ID:            11,
			BookID:        3,
			PageNumber:    2,
			PageType:      "music_score",
			GermanText:    "Vorspiel",
			ContentImages: `[{"type":"music_score","image_file":"crop_a.png","crop_percent":{"top":10,"bottom":80}}]`,
		},
	}
	return book, pages
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "yaml", expected: FormatYAML},
		{input: ".YML", expected: FormatYAML},
		{input: "jsonl", expected: FormatJSONL},
		{input: "parquet", expected: FormatParquet},
		{input: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRows(t *testing.T) {
	book, pages := testBook()
	rows := Rows(book, pages)

	expected := []SentenceRow{
		{BookID: 3, BookTitle: "Oper und Drama", PageID: 10, PageNumber: 1, SentenceIndex: 0, German: "Das Werk.", Korean: "작품.", English: "The work."},
		{BookID: 3, BookTitle: "Oper und Drama", PageID: 10, PageNumber: 1, SentenceIndex: 1, German: "Es lebt.", Korean: "살아있다.", English: "It lives."},
		{BookID: 3, BookTitle: "Oper und Drama", PageID: 11, PageNumber: 2, SentenceIndex: 0, German: "Vorspiel"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteYAML(t *testing.T) {
	book, pages := testBook()
	var buf bytes.Buffer
	if err := Write(&buf, FormatYAML, book, pages); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if doc.Book.Title != "Oper und Drama" || doc.Book.CreatedAt != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected book: %+v", doc.Book)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if len(doc.Pages[0].Sentences) != 2 {
		t.Errorf("expected sentences on page 1, got %+v", doc.Pages[0].Sentences)
	}
	blocks := doc.Pages[1].ContentBlocks
	if len(blocks) != 1 || blocks[0].ImageFile != "crop_a.png" {
		t.Errorf("expected content block on page 2, got %+v", blocks)
	}
}

func TestWriteYAMLInvalidBlocks(t *testing.T) {
	book, pages := testBook()
	pages[1].ContentImages = "{broken"
	if err := Write(&bytes.Buffer{}, FormatYAML, book, pages); err == nil {
		t.Error("expected error for invalid content blocks")
	}
}

func TestWriteJSONL(t *testing.T) {
	book, pages := testBook()
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSONL, book, pages); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var rows []SentenceRow
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var row SentenceRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		rows = append(rows, row)
	}
	if diff := cmp.Diff(Rows(book, pages), rows); diff != "" {
		t.Errorf("JSONL rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileParquet(t *testing.T) {
	book, pages := testBook()
	path := filepath.Join(t.TempDir(), "out", "book.parquet")
	if err := WriteFile(path, FormatParquet, book, pages); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		t.Fatal(err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		t.Fatalf("failed to open parquet: %v", err)
	}
	reader := parquet.NewGenericReader[SentenceRow](pf)
	defer reader.Close()

	rows := make([]SentenceRow, pf.NumRows())
	n, err := reader.Read(rows)
	if n != len(rows) {
		t.Fatalf("read %d of %d rows: %v", n, len(rows), err)
	}
	if diff := cmp.Diff(Rows(book, pages), rows); diff != "" {
		t.Errorf("parquet rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	book, pages := testBook()
	if err := Write(&bytes.Buffer{}, Format("csv"), book, pages); err == nil {
		t.Error("expected error for unknown format")
	}
}
