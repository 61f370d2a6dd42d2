package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/lehigh-university-libraries/wagner/internal/providers"
)

var (
	// ErrTooLarge is returned when a remote image exceeds the size limit
	ErrTooLarge = errors.New("image too large")
	// ErrBlockedAddress is returned when a URL resolves to a non-public address
	ErrBlockedAddress = errors.New("image_url resolves to a blocked address")
)

const maxRedirects = 5

// carrier-grade NAT, not covered by netip.Addr.IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher downloads page scans from remote URLs
type Fetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// Image is a downloaded scan
type Image struct {
	Data     []byte
	Filename string
	MIMEType string
}

// NewFetcher creates a new image fetcher. Unless allowPrivate is set, connections to
// loopback, private, link-local and other non-public addresses are refused, including
// after redirects.
func NewFetcher(maxBytes int64, allowPrivate bool) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !allowPrivate {
		dialer.Control = refuseNonPublic
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout:       30 * time.Second,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		MaxBytes: maxBytes,
	}
}

// refuseNonPublic runs after name resolution, so it sees the address actually dialed
func refuseNonPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	if !isPublic(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

// IsURL reports whether s is an http or https URL
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads the image at rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsURL(rawURL) {
		return nil, fmt.Errorf("image_url must be http/https")
	}
	if len(rawURL) > 2048 {
		return nil, fmt.Errorf("image_url too long")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image_url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "wagner/1.0")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, f.MaxBytes)
	}

	mime, ok := providers.SniffImage(data)
	if !ok {
		return nil, fmt.Errorf("downloaded content is not an image (%s)", mime)
	}

	filename := path.Base(u.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "image" + providers.ImageExtension(mime)
	}

	slog.Info("Downloaded image", "url", u.Redacted(), "filename", filename, "bytes", len(data))
	return &Image{Data: data, Filename: filename, MIMEType: mime}, nil
}
