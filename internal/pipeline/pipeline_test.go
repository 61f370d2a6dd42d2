package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/wagner/internal/gateway"
	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/providers"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcProvider answers each request with respond; safe for concurrent use
type funcProvider struct {
	mu      sync.Mutex
	prompts []string
	respond func(config providers.Config) (string, error)
}

func (f *funcProvider) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, config.Prompt)
	f.mu.Unlock()
	return f.respond(config)
}

const layoutJSON = `{"page_type":"mixed","blocks":[
	{"type":"text","content":"Erster Absatz.","top":0,"bottom":50},
	{"type":"music_score","description":"Vorspiel","top":50,"bottom":90}
]}`

func newVision(ocr map[string]string) *funcProvider {
	return &funcProvider{respond: func(config providers.Config) (string, error) {
		if config.JSON {
			return layoutJSON, nil
		}
		for marker, text := range ocr {
			if bytes.Contains(config.Images[0].Data, []byte(marker)) {
				return text, nil
			}
		}
		return "Unbekannt.", nil
	}}
}

func newText() *funcProvider {
	return &funcProvider{respond: func(config providers.Config) (string, error) {
		if strings.Contains(config.Prompt, "END OF PREVIOUS PAGE") {
			return `{"merged_from_previous":"Musik-","clean_german":"Musikdrama ist neu.","sentences":[{"de":"Musikdrama ist neu.","ko":"음악극은 새롭다.","en":"Music drama is new."}]}`, nil
		}
		return `{"sentences":[{"de":"Das Werk.","ko":"작품.","en":"The work."},{"de":"Es lebt.","ko":"살아있다.","en":"It lives."}]}`, nil
	}}
}

func testPNG(t *testing.T, marker string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	// trailing bytes after IEND are ignored by decoders and let fakes tell scans apart
	buf.WriteString(marker)
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, vision, text providers.Provider, detectLayout bool) (*Pipeline, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "wagner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := gateway.NewService(vision, text, gateway.Options{Model: "test-model"})
	p := New(gw, store, Options{
		UploadsDir:           filepath.Join(dir, "uploads"),
		PreviousContextChars: 10,
		MaxConcurrent:        2,
		DetectLayout:         detectLayout,
	})
	return p, store
}

func TestProcessPageFirstPage(t *testing.T) {
	p, _ := newTestPipeline(t, newVision(nil), newText(), false)

	result, err := p.ProcessPage(context.Background(), PageInput{Image: testPNG(t, "a"), Filename: "Seite1.PNG"})
	require.NoError(t, err)

	assert.Equal(t, "Unbekannt.", result.Original)
	assert.Equal(t, "작품.\n살아있다.", result.Korean)
	assert.Equal(t, "The work.\nIt lives.", result.English)
	assert.Len(t, result.Sentences, 2)
	assert.Equal(t, "Seite1.PNG", result.Filename)
	assert.True(t, strings.HasSuffix(result.StoredFilename, ".png"))
	assert.Empty(t, result.MergedFromPrevious)
	assert.Equal(t, models.BlockText, result.PageType)
	assert.Empty(t, result.ContentBlocks)

	_, err = os.Stat(filepath.Join(p.UploadsDir(), result.StoredFilename))
	assert.NoError(t, err, "upload should be stored")
}

func TestProcessPageMergesWithPrevious(t *testing.T) {
	text := newText()
	p, _ := newTestPipeline(t, newVision(nil), text, false)

	previous := "Ein sehr langer Satz über das Musik-"
	result, err := p.ProcessPage(context.Background(), PageInput{
		Image:          testPNG(t, "b"),
		Filename:       "s2.png",
		PreviousGerman: previous,
	})
	require.NoError(t, err)

	assert.Equal(t, "Musikdrama ist neu.", result.Original)
	assert.Equal(t, "Musik-", result.MergedFromPrevious)
	assert.Equal(t, "음악극은 새롭다.", result.Korean)

	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], "das Musik-")
	assert.NotContains(t, text.prompts[0], "über", "only the page ending is sent")
}

func TestProcessPageCropsContentBlocks(t *testing.T) {
	p, _ := newTestPipeline(t, newVision(nil), newText(), true)

	result, err := p.ProcessPage(context.Background(), PageInput{Image: testPNG(t, "c"), Filename: "noten.png"})
	require.NoError(t, err)

	assert.Equal(t, "mixed", result.PageType)
	require.Len(t, result.ContentBlocks, 2)
	assert.Empty(t, result.ContentBlocks[0].ImageFile)

	score := result.ContentBlocks[1]
	assert.Equal(t, models.BlockMusicScore, score.Type)
	require.NotEmpty(t, score.ImageFile)
	assert.True(t, strings.HasPrefix(score.ImageFile, "crop_"))

	f, err := os.Open(filepath.Join(p.UploadsDir(), score.ImageFile))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Height)
	assert.Equal(t, 36, cfg.Width)
}

func TestProcessPageLayoutFailureIsNotFatal(t *testing.T) {
	vision := &funcProvider{respond: func(config providers.Config) (string, error) {
		if config.JSON {
			return "", errors.New("layout unavailable")
		}
		return "Text.", nil
	}}
	p, _ := newTestPipeline(t, vision, newText(), true)

	result, err := p.ProcessPage(context.Background(), PageInput{Image: testPNG(t, "d"), Filename: "x.png"})
	require.NoError(t, err)
	assert.Equal(t, models.BlockText, result.PageType)
	assert.Empty(t, result.ContentBlocks)
}

func TestProcessPageErrors(t *testing.T) {
	p, _ := newTestPipeline(t, newVision(nil), newText(), false)

	_, err := p.ProcessPage(context.Background(), PageInput{})
	assert.ErrorIs(t, err, ErrNoImage)

	failing := &funcProvider{respond: func(providers.Config) (string, error) { return "", errors.New("quota") }}
	p, _ = newTestPipeline(t, failing, newText(), false)
	_, err = p.ProcessPage(context.Background(), PageInput{Image: testPNG(t, "e")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR failed")
}

func TestPersistAndPreviousGerman(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, newVision(nil), newText(), true)

	book := &models.Book{Title: "Oper und Drama"}
	require.NoError(t, store.CreateBook(ctx, book))

	prev, err := p.PreviousGerman(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, prev)

	result, err := p.ProcessPage(ctx, PageInput{Image: testPNG(t, "f"), Filename: "f.png"})
	require.NoError(t, err)

	page, err := p.Persist(ctx, book.ID, result)
	require.NoError(t, err)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, "mixed", page.PageType)
	assert.Equal(t, result.StoredFilename, page.OriginalImageURL)

	blocks, err := models.ParseContentBlocks(page.ContentImages)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	prev, err = p.PreviousGerman(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Original, prev)
}

func TestIngestBook(t *testing.T) {
	ctx := context.Background()
	vision := newVision(map[string]string{"#page-one#": "Das Werk. Es lebt.", "#page-two#": "drama ist neu."})
	text := newText()
	p, store := newTestPipeline(t, vision, text, false)

	book := &models.Book{Title: "Oper und Drama"}
	require.NoError(t, store.CreateBook(ctx, book))

	pages, err := p.IngestBook(ctx, book.ID, []PageFile{
		{Name: "001.png", Data: testPNG(t, "#page-one#")},
		{Name: "002.png", Data: testPNG(t, "#page-two#")},
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "Das Werk. Es lebt.", pages[0].GermanText)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, "Musikdrama ist neu.", pages[1].GermanText)

	require.Len(t, text.prompts, 2)
	assert.NotContains(t, text.prompts[0], "END OF PREVIOUS PAGE", "first page of an empty book is translated directly")
	assert.Contains(t, text.prompts[1], "Es lebt.", "second page merges against the first")

	stored, err := store.ListPages(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestIngestBookMissingBook(t *testing.T) {
	p, _ := newTestPipeline(t, newVision(nil), newText(), false)
	_, err := p.IngestBook(context.Background(), 42, []PageFile{{Name: "a.png", Data: testPNG(t, "g")}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
