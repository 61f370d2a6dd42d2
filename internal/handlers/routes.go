package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

// Routes returns the API with its middleware applied
func (h *Handler) Routes() http.Handler {
	ocrSem := semaphore.NewWeighted(h.opts.MaxConcurrentOCR)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/books", h.HandleListBooks)
	api.HandleFunc("POST /api/books", h.HandleCreateBook)
	api.HandleFunc("GET /api/books/{id}", h.HandleGetBook)
	api.HandleFunc("PUT /api/books/{id}", h.HandleUpdateBook)
	api.HandleFunc("DELETE /api/books/{id}", h.HandleDeleteBook)
	api.HandleFunc("GET /api/books/{id}/pages", h.HandleBookPages)
	api.HandleFunc("POST /api/books/{id}/pages", h.HandleAddPage)

	api.HandleFunc("PUT /api/pages/{id}", h.HandleUpdatePage)
	api.HandleFunc("DELETE /api/pages/{id}", h.HandleDeletePage)
	api.HandleFunc("POST /api/pages/{id}/move", h.HandleMovePage)
	api.HandleFunc("POST /api/pages/{id}/retranslate", withConcurrencyLimit(ocrSem, h.HandleRetranslate))
	api.HandleFunc("POST /api/pages/{id}/recrop", h.HandleRecrop)
	api.HandleFunc("GET /api/pages/{id}/history", h.HandlePageHistory)
	api.HandleFunc("POST /api/pages/{id}/history/{historyID}/activate", h.HandleActivateHistory)

	api.HandleFunc("POST /api/ocr", withConcurrencyLimit(ocrSem, h.HandleOCR))
	api.HandleFunc("GET /api/uploads/{file}", h.HandleUploads)

	mux := http.NewServeMux()
	mux.Handle("/api/", h.limiter.wrap(api))
	mux.HandleFunc("GET /{$}", h.HandleHome)
	mux.HandleFunc("GET /health", h.HandleHealth)

	return withLogging(withRecovery(withCORS(h.opts.CORSOrigin, mux)))
}

// RunLimiterCleanup forgets per-IP rate limit state every interval until ctx is done
func (h *Handler) RunLimiterCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.limiter.reset()
			slog.Debug("Rate limiters reset")
		}
	}
}
