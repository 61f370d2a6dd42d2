package providers

import (
	"bytes"
	"context"
	"net/http"
	"strings"
)

// Image is an inline image sent alongside a prompt
type Image struct {
	MIMEType string
	Data     []byte
}

// Config represents the configuration for an LLM provider call
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	MaxTokens   int
	Images      []Image
	// JSON asks the provider to constrain output to a JSON object
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

var (
	tiffLittleEndian = []byte("II*\x00")
	tiffBigEndian    = []byte("MM\x00*")
)

// DetectImageMIME sniffs the content type of image data, defaulting to image/jpeg
func DetectImageMIME(data []byte) string {
	if ct, ok := SniffImage(data); ok {
		return ct
	}
	return "image/jpeg"
}

// SniffImage reports the image content type of data. It adds TIFF to what
// http.DetectContentType recognizes.
func SniffImage(data []byte) (string, bool) {
	if bytes.HasPrefix(data, tiffLittleEndian) || bytes.HasPrefix(data, tiffBigEndian) {
		return "image/tiff", true
	}
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct, true
	}
	return ct, false
}

// NewImage wraps raw image bytes with their sniffed content type
func NewImage(data []byte) Image {
	return Image{MIMEType: DetectImageMIME(data), Data: data}
}

// ImageExtension returns the file extension for an image content type, defaulting to .jpg
func ImageExtension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tif"
	default:
		return ".jpg"
	}
}
