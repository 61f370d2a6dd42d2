package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/providers"
)

// Options configures a gateway Service
type Options struct {
	Model              string
	OCRMaxTokens       int
	TranslateMaxTokens int
}

// MergeResult is the outcome of reconciling a page with the end of the previous one
type MergeResult struct {
	Sentences          []models.Sentence `json:"sentences"`
	CleanGerman        string            `json:"clean_german"`
	MergedFromPrevious string            `json:"merged_from_previous"`
}

// Layout describes the content blocks detected on a page
type Layout struct {
	PageType string                `json:"page_type"`
	Blocks   []models.ContentBlock `json:"blocks"`
}

// Service handles all calls to the hosted model: OCR, translation, page merging and layout detection
type Service struct {
	vision providers.Provider
	text   providers.Provider
	opts   Options
}

// NewService creates a gateway. vision serves image prompts, text serves translation prompts.
func NewService(vision, text providers.Provider, opts Options) *Service {
	if opts.OCRMaxTokens <= 0 {
		opts.OCRMaxTokens = 1000
	}
	if opts.TranslateMaxTokens <= 0 {
		opts.TranslateMaxTokens = 4000
	}
	return &Service{
		vision: vision,
		text:   text,
		opts:   opts,
	}
}

// Model returns the configured model name
func (s *Service) Model() string {
	return s.opts.Model
}

// ExtractText extracts the German text of a page image
func (s *Service) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("OCR failed: empty image")
	}

	out, err := s.vision.ExtractText(ctx, providers.Config{
		Model:       s.opts.Model,
		Prompt:      buildOCRPrompt(),
		Temperature: 0.0,
		MaxTokens:   s.opts.OCRMaxTokens,
		Images:      []providers.Image{providers.NewImage(image)},
	})
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	text := trimFences(out)
	slog.Info("Extracted OCR text", "model", s.opts.Model, "length", len(text))
	return text, nil
}

// TranslateWithSentenceMapping splits German text into sentences aligned with Korean and English
func (s *Service) TranslateWithSentenceMapping(ctx context.Context, german string) ([]models.Sentence, error) {
	if strings.TrimSpace(german) == "" {
		return []models.Sentence{}, nil
	}

	out, err := s.text.ExtractText(ctx, providers.Config{
		Model:       s.opts.Model,
		Prompt:      buildTranslationPrompt(german),
		Temperature: 0.2,
		MaxTokens:   s.opts.TranslateMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	sentences, err := parseSentences(out)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	slog.Info("Translated page", "model", s.opts.Model, "sentences", len(sentences))
	return sentences, nil
}

// MergeAndTranslatePages reconciles words or sentences split across the page break
// and translates the resulting current page
func (s *Service) MergeAndTranslatePages(ctx context.Context, previousEnding, current string) (*MergeResult, error) {
	if strings.TrimSpace(previousEnding) == "" {
		sentences, err := s.TranslateWithSentenceMapping(ctx, current)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Sentences: sentences, CleanGerman: current}, nil
	}

	out, err := s.text.ExtractText(ctx, providers.Config{
		Model:       s.opts.Model,
		Prompt:      buildMergePrompt(previousEnding, current),
		Temperature: 0.2,
		MaxTokens:   s.opts.TranslateMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	parsed, err := parseMerge(out)
	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	result := &MergeResult{
		Sentences:          parsed.Sentences,
		CleanGerman:        parsed.CleanGerman,
		MergedFromPrevious: parsed.MergedFromPrevious,
	}
	if result.CleanGerman == "" {
		result.CleanGerman = current
	}
	if result.MergedFromPrevious != "" {
		slog.Info("Merged text from previous page", "fragment", result.MergedFromPrevious)
	}
	return result, nil
}

// DetectLayout asks the model for the content blocks of a page and their vertical bounds
func (s *Service) DetectLayout(ctx context.Context, image []byte) (*Layout, error) {
	out, err := s.vision.ExtractText(ctx, providers.Config{
		Model:       s.opts.Model,
		Prompt:      buildLayoutPrompt(),
		Temperature: 0.0,
		MaxTokens:   s.opts.TranslateMaxTokens,
		Images:      []providers.Image{providers.NewImage(image)},
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("layout detection failed: %w", err)
	}

	layout, err := parseLayout(out)
	if err != nil {
		return nil, fmt.Errorf("layout detection failed: %w", err)
	}
	slog.Debug("Detected layout", "page_type", layout.PageType, "blocks", len(layout.Blocks))
	return layout, nil
}

// PreviousEnding returns the last n characters of text, or all of it when shorter
func PreviousEnding(text string, n int) string {
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
