package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// CropPrefix marks files produced by CropFile; only these are ever removed
const CropPrefix = "crop_"

// Horizontal margins trimmed from every crop, as fractions of the page width
const (
	marginLeft  = 0.05
	marginRight = 0.95
)

// ErrInvalidBounds is returned for crop percentages outside 0..100 or with top >= bottom
var ErrInvalidBounds = errors.New("invalid crop bounds")

// ValidateBounds checks vertical crop percentages
func ValidateBounds(topPct, bottomPct float64) error {
	if topPct < 0 || bottomPct > 100 || topPct >= bottomPct {
		return fmt.Errorf("%w: top=%v bottom=%v", ErrInvalidBounds, topPct, bottomPct)
	}
	return nil
}

// Crop returns the region between topPct and bottomPct of the image height,
// with the outer 5% trimmed from each side
func Crop(src image.Image, topPct, bottomPct float64) (image.Image, error) {
	if err := ValidateBounds(topPct, bottomPct); err != nil {
		return nil, err
	}

	b := src.Bounds()
	width, height := b.Dx(), b.Dy()

	top := max(0, int(float64(height)*topPct/100))
	bottom := min(height, int(float64(height)*bottomPct/100))
	left := int(float64(width) * marginLeft)
	right := int(float64(width) * marginRight)
	if bottom <= top || right <= left {
		return nil, fmt.Errorf("%w: empty region for %dx%d image", ErrInvalidBounds, width, height)
	}

	rect := image.Rect(0, 0, right-left, bottom-top)
	dst := image.NewRGBA(rect)
	draw.Copy(dst, image.Point{}, src, image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+right, b.Min.Y+bottom), draw.Src, nil)
	return dst, nil
}

// CropFile crops dir/original and writes the result as a new PNG in dir, returning its filename
func CropFile(dir, original string, topPct, bottomPct float64) (string, error) {
	f, err := os.Open(filepath.Join(dir, filepath.Base(original)))
	if err != nil {
		return "", fmt.Errorf("failed to open original image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode original image: %w", err)
	}

	cropped, err := Crop(src, topPct, bottomPct)
	if err != nil {
		return "", err
	}

	name := NewCropName(time.Now())
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create crop file: %w", err)
	}
	if err := png.Encode(out, cropped); err != nil {
		out.Close()
		os.Remove(filepath.Join(dir, name))
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write crop: %w", err)
	}

	return name, nil
}

// NewCropName returns crop_YYYYMMDD_HHMMSS_<8 hex>.png
func NewCropName(now time.Time) string {
	return fmt.Sprintf("%s%s_%s.png", CropPrefix, now.Format("20060102_150405"), uuid.NewString()[:8])
}

// RemoveCrop deletes a previous crop from dir. Names without the crop prefix are left alone.
func RemoveCrop(dir, name string) error {
	if name == "" || !strings.HasPrefix(name, CropPrefix) {
		return nil
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid crop name %q", name)
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove crop: %w", err)
	}
	return nil
}

// Dimensions returns the width and height of the image at path
func Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	img, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}

	return img.Width, img.Height, nil
}
