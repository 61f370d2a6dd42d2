package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Translation history field names
const (
	FieldKorean  = "korean_text"
	FieldEnglish = "english_text"
)

// Content block types reported by layout detection
const (
	BlockText         = "text"
	BlockMusicScore   = "music_score"
	BlockIllustration = "illustration"
)

// Book represents a digitized book
type Book struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	OriginalLanguage string    `json:"original_language"`
	CreatedAt        time.Time `json:"created_at"`
	Published        bool      `json:"published"`
	PageCount        int       `json:"page_count"`
}

// Page represents a single scanned page and its translations
type Page struct {
	ID               int64      `json:"id"`
	BookID           int64      `json:"book_id"`
	PageNumber       int        `json:"page_number"`
	PageType         string     `json:"page_type"` // "text", "music_score", "illustration", "mixed"
	GermanText       string     `json:"german_text"`
	KoreanText       string     `json:"korean_text"`
	EnglishText      string     `json:"english_text"`
	Sentences        []Sentence `json:"sentences"`
	OriginalImageURL string     `json:"original_image_url"`
	ContentImages    string     `json:"content_images"` // JSON array of ContentBlock
	CreatedAt        time.Time  `json:"created_at"`
}

// TranslationHistory is one stored version of a translated page field
type TranslationHistory struct {
	ID              int64     `json:"id"`
	PageID          int64     `json:"page_id"`
	Field           string    `json:"field"`
	TranslationText string    `json:"translation_text"`
	VersionNumber   int       `json:"version_number"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Sentence is a German sentence aligned with its Korean and English translations
type Sentence struct {
	De string `json:"de"`
	Ko string `json:"ko"`
	En string `json:"en"`
}

// CropPercent holds vertical crop bounds as percentages of the page height
type CropPercent struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// ContentBlock is a region of a page as reported by layout detection
type ContentBlock struct {
	Type        string       `json:"type"`
	Content     string       `json:"content,omitempty"`
	Description string       `json:"description,omitempty"`
	ImageFile   string       `json:"image_file,omitempty"`
	CropPercent *CropPercent `json:"crop_percent,omitempty"`
}

// JoinKorean joins the Korean side of the sentences, one per line
func JoinKorean(sentences []Sentence) string {
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Ko
	}
	return strings.Join(lines, "\n")
}

// JoinEnglish joins the English side of the sentences, one per line
func JoinEnglish(sentences []Sentence) string {
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.En
	}
	return strings.Join(lines, "\n")
}

// ApplyLines overwrites one language of each sentence with the matching line of text.
// Sentences beyond the number of lines are left untouched, extra lines are ignored.
func ApplyLines(sentences []Sentence, lang, text string) []Sentence {
	lines := strings.Split(text, "\n")
	out := make([]Sentence, len(sentences))
	copy(out, sentences)
	for i := range out {
		if i >= len(lines) {
			break
		}
		switch lang {
		case "de":
			out[i].De = lines[i]
		case "ko":
			out[i].Ko = lines[i]
		case "en":
			out[i].En = lines[i]
		}
	}
	return out
}

// DecodeSentences parses stored sentence JSON. Empty or invalid input yields nil.
func DecodeSentences(raw string) []Sentence {
	if raw == "" {
		return nil
	}
	var sentences []Sentence
	if err := json.Unmarshal([]byte(raw), &sentences); err != nil {
		return nil
	}
	return sentences
}

// EncodeSentences serializes sentences for storage. A nil slice is stored as empty.
func EncodeSentences(sentences []Sentence) (string, error) {
	if sentences == nil {
		return "", nil
	}
	data, err := json.Marshal(sentences)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseContentBlocks parses the stored content_images column
func ParseContentBlocks(raw string) ([]ContentBlock, error) {
	if strings.TrimSpace(raw) == "" {
		return []ContentBlock{}, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// EncodeContentBlocks serializes content blocks for the content_images column
func EncodeContentBlocks(blocks []ContentBlock) (string, error) {
	if len(blocks) == 0 {
		return "", nil
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
