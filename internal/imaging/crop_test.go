package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writePNG writes a w x h image whose rows are coloured by their y coordinate
func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y), G: uint8(x), B: 0, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
}

func TestCropRegion(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: uint8(y), G: uint8(x), A: 255})
		}
	}

	got, err := Crop(src, 25, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := got.Bounds()
	// width 200 -> 10..190, height 100 -> 25..75
	if b.Dx() != 180 || b.Dy() != 50 {
		t.Fatalf("unexpected crop size %dx%d", b.Dx(), b.Dy())
	}

	r, g, _, _ := got.At(0, 0).RGBA()
	if uint8(r>>8) != 25 || uint8(g>>8) != 10 {
		t.Errorf("crop origin maps to wrong source pixel: r=%d g=%d", r>>8, g>>8)
	}
}

func TestCropInvalidBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	tests := []struct {
		name        string
		top, bottom float64
	}{
		{"inverted", 60, 40},
		{"equal", 50, 50},
		{"negative top", -1, 50},
		{"bottom over 100", 0, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(src, tt.top, tt.bottom); !errors.Is(err, ErrInvalidBounds) {
				t.Errorf("expected ErrInvalidBounds, got %v", err)
			}
		})
	}
}

func TestCropFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "page.png", 100, 200)

	name, err := CropFile(dir, "page.png", 0, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !regexp.MustCompile(`^crop_\d{8}_\d{6}_[0-9a-f]{8}\.png$`).MatchString(name) {
		t.Errorf("unexpected crop name %q", name)
	}

	w, h, err := Dimensions(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read crop: %v", err)
	}
	if w != 90 || h != 100 {
		t.Errorf("unexpected crop dimensions %dx%d", w, h)
	}
}

func TestCropFileMissingOriginal(t *testing.T) {
	if _, err := CropFile(t.TempDir(), "missing.png", 0, 100); err == nil {
		t.Fatal("expected error for missing original")
	}
}

func TestRemoveCrop(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "crop_old.png", 2, 2)
	writePNG(t, dir, "original.png", 2, 2)

	if err := RemoveCrop(dir, "crop_old.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "crop_old.png")); !os.IsNotExist(err) {
		t.Errorf("crop file should be removed")
	}

	if err := RemoveCrop(dir, "original.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "original.png")); err != nil {
		t.Errorf("non-crop file must be kept: %v", err)
	}

	if err := RemoveCrop(dir, "crop_already_gone.png"); err != nil {
		t.Errorf("missing crop should not be an error: %v", err)
	}
	if err := RemoveCrop(dir, "crop_../../etc/passwd"); err == nil {
		t.Errorf("expected error for path traversal")
	}
}

func TestNewCropName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	name := NewCropName(now)
	if name[:21] != "crop_20240305_140709_" {
		t.Errorf("unexpected prefix in %q", name)
	}
	if NewCropName(now) == name {
		t.Errorf("crop names should be unique")
	}
}
