package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/gateway"
	"github.com/lehigh-university-libraries/wagner/internal/imaging"
	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/providers"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
	"github.com/lehigh-university-libraries/wagner/internal/utils"
	"golang.org/x/sync/errgroup"
)

// ErrNoImage is returned when a page is submitted without image data
var ErrNoImage = errors.New("no image provided")

type Options struct {
	UploadsDir           string
	PreviousContextChars int
	// MaxConcurrent bounds the OCR calls made in parallel by IngestBook
	MaxConcurrent int
	DetectLayout  bool
}

// Pipeline turns page scans into translated, optionally persisted pages
type Pipeline struct {
	gateway *gateway.Service
	store   *storage.Store
	opts    Options
}

// PageInput is a single uploaded scan
type PageInput struct {
	Image          []byte
	Filename       string
	PreviousGerman string
}

// PageResult is the processed form of a scanned page
type PageResult struct {
	Original           string                `json:"original"`
	Korean             string                `json:"korean"`
	English            string                `json:"english"`
	Sentences          []models.Sentence     `json:"sentences"`
	Filename           string                `json:"filename"`
	StoredFilename     string                `json:"stored_filename"`
	MergedFromPrevious string                `json:"merged_from_previous,omitempty"`
	PageType           string                `json:"page_type"`
	ContentBlocks      []models.ContentBlock `json:"content_images"`
}

// PageFile is a named image handed to IngestBook
type PageFile struct {
	Name string
	Data []byte
}

type scan struct {
	image    []byte
	filename string
	stored   string
	german   string
}

func New(gw *gateway.Service, store *storage.Store, opts Options) *Pipeline {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	if opts.PreviousContextChars <= 0 {
		opts.PreviousContextChars = 300
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Pipeline{
		gateway: gw,
		store:   store,
		opts:    opts,
	}
}

// UploadsDir returns the directory scans and crops are written to
func (p *Pipeline) UploadsDir() string {
	return p.opts.UploadsDir
}

// ProcessPage stores the scan, extracts its German text and translates it. When previous
// page text is given, the end of it is used to repair words and sentences split by the page break.
func (p *Pipeline) ProcessPage(ctx context.Context, in PageInput) (*PageResult, error) {
	sc, err := p.scan(ctx, in.Image, in.Filename)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, sc, in.PreviousGerman)
}

// Persist appends a processed page to a book
func (p *Pipeline) Persist(ctx context.Context, bookID int64, result *PageResult) (*models.Page, error) {
	blocks, err := models.EncodeContentBlocks(result.ContentBlocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content blocks: %w", err)
	}
	return p.store.AddPage(ctx, bookID, storage.NewPage{
		PageType:         result.PageType,
		GermanText:       result.Original,
		KoreanText:       result.Korean,
		EnglishText:      result.English,
		Sentences:        result.Sentences,
		OriginalImageURL: result.StoredFilename,
		ContentImages:    blocks,
	})
}

// PreviousGerman returns the German text of the last page of a book, or "" for an empty book
func (p *Pipeline) PreviousGerman(ctx context.Context, bookID int64) (string, error) {
	last, err := p.store.LastPage(ctx, bookID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return last.GermanText, nil
}

// IngestBook appends the given scans to a book in order. OCR runs concurrently; merging and
// translation run sequentially because each page depends on the text of the one before it.
func (p *Pipeline) IngestBook(ctx context.Context, bookID int64, files []PageFile) ([]models.Page, error) {
	if _, err := p.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	previous, err := p.PreviousGerman(ctx, bookID)
	if err != nil {
		return nil, err
	}

	scans := make([]*scan, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrent)
	for i, f := range files {
		g.Go(func() error {
			sc, err := p.scan(gctx, f.Data, f.Name)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			scans[i] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(scans))
	for _, sc := range scans {
		result, err := p.finish(ctx, sc, previous)
		if err != nil {
			return pages, fmt.Errorf("%s: %w", sc.filename, err)
		}
		page, err := p.Persist(ctx, bookID, result)
		if err != nil {
			return pages, fmt.Errorf("%s: %w", sc.filename, err)
		}
		slog.Info("Ingested page", "book_id", bookID, "page_number", page.PageNumber, "file", sc.filename)
		pages = append(pages, *page)
		previous = result.Original
	}
	return pages, nil
}

func (p *Pipeline) scan(ctx context.Context, image []byte, filename string) (*scan, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	stored, err := p.saveUpload(image, filename)
	if err != nil {
		return nil, err
	}

	german, err := p.gateway.ExtractText(ctx, image)
	if err != nil {
		return nil, err
	}

	return &scan{image: image, filename: filename, stored: stored, german: german}, nil
}

func (p *Pipeline) finish(ctx context.Context, sc *scan, previousGerman string) (*PageResult, error) {
	result := &PageResult{
		Original:       sc.german,
		Filename:       sc.filename,
		StoredFilename: sc.stored,
		PageType:       models.BlockText,
		ContentBlocks:  []models.ContentBlock{},
	}

	if strings.TrimSpace(previousGerman) != "" {
		ending := gateway.PreviousEnding(previousGerman, p.opts.PreviousContextChars)
		merged, err := p.gateway.MergeAndTranslatePages(ctx, ending, sc.german)
		if err != nil {
			return nil, err
		}
		result.Original = merged.CleanGerman
		result.Sentences = merged.Sentences
		result.MergedFromPrevious = merged.MergedFromPrevious
	} else {
		sentences, err := p.gateway.TranslateWithSentenceMapping(ctx, sc.german)
		if err != nil {
			return nil, err
		}
		result.Sentences = sentences
	}
	result.Korean = models.JoinKorean(result.Sentences)
	result.English = models.JoinEnglish(result.Sentences)

	if p.opts.DetectLayout {
		p.applyLayout(ctx, sc, result)
	}
	return result, nil
}

// applyLayout detects content blocks and crops the non-text ones. Failures only cost the crops.
func (p *Pipeline) applyLayout(ctx context.Context, sc *scan, result *PageResult) {
	layout, err := p.gateway.DetectLayout(ctx, sc.image)
	if err != nil {
		slog.Warn("Layout detection failed", "file", sc.filename, "err", err)
		return
	}

	for i := range layout.Blocks {
		block := &layout.Blocks[i]
		if block.Type == models.BlockText || block.CropPercent == nil {
			continue
		}
		name, err := imaging.CropFile(p.opts.UploadsDir, sc.stored, block.CropPercent.Top, block.CropPercent.Bottom)
		if err != nil {
			slog.Warn("Failed to crop content block", "file", sc.filename, "type", block.Type, "err", err)
			continue
		}
		block.ImageFile = name
	}

	result.PageType = layout.PageType
	result.ContentBlocks = layout.Blocks
	if result.ContentBlocks == nil {
		result.ContentBlocks = []models.ContentBlock{}
	}
}

// saveUpload writes the scan under its md5 so identical uploads share one file
func (p *Pipeline) saveUpload(data []byte, filename string) (string, error) {
	if err := os.MkdirAll(p.opts.UploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = providers.ImageExtension(providers.DetectImageMIME(data))
	}
	name := utils.CalculateDataMD5(data) + ext

	if err := os.WriteFile(filepath.Join(p.opts.UploadsDir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	slog.Info("Image saved", "filename", name, "original", filename, "bytes", len(data))
	return name, nil
}
