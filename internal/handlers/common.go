package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/wagner/internal/gateway"
	"github.com/lehigh-university-libraries/wagner/internal/images"
	"github.com/lehigh-university-libraries/wagner/internal/pipeline"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
)

const maxJSONBodyBytes = 2 << 20

type Options struct {
	Version        string
	UploadsDir     string
	MaxUploadBytes int64
	CORSOrigin     string

	// per-IP rate limit on /api
	RateLimitEvery time.Duration
	RateLimitBurst int
	// proxies whose X-Forwarded-For / X-Real-IP headers are honoured (IPs or CIDRs)
	TrustedProxies []string
	// lets image_url reach loopback and private networks
	AllowPrivateImageURLs bool
	// concurrent requests allowed on routes that call the model
	MaxConcurrentOCR int64
}

type Handler struct {
	store    *storage.Store
	gateway  *gateway.Service
	pipeline *pipeline.Pipeline
	fetcher  *images.Fetcher
	limiter  *rateLimiter
	opts     Options
}

func New(store *storage.Store, gw *gateway.Service, p *pipeline.Pipeline, opts Options) *Handler {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.MaxConcurrentOCR <= 0 {
		opts.MaxConcurrentOCR = 3
	}
	trusted, err := parseTrustedProxies(opts.TrustedProxies)
	if err != nil {
		slog.Warn("Ignoring trusted proxies", "err", err)
		trusted = nil
	}
	return &Handler{
		store:    store,
		gateway:  gw,
		pipeline: p,
		fetcher:  images.NewFetcher(opts.MaxUploadBytes, opts.AllowPrivateImageURLs),
		limiter:  newRateLimiter(opts.RateLimitEvery, opts.RateLimitBurst, trusted),
		opts:     opts,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	writeErr(w, code, message)
}

func writeErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// writeStoreError maps storage errors to a response
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}
	h.writeError(w, err.Error(), http.StatusInternalServerError)
}

// Request helpers
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseJSON decodes a single JSON value from the request body. An empty body yields the zero value.
func parseJSON[T any](r *http.Request) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))

	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return out, err
	}

	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}

	return out, nil
}
