package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Wagner Translator Backend API",
		"status":   "running",
		"version":  h.opts.Version,
		"database": "SQLite",
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

// HandleUploads serves stored scans and crops
func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")

	// Prevent directory traversal attacks
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		h.writeError(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.opts.UploadsDir, name))
}
