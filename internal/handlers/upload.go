package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/pipeline"
)

// HandleOCR extracts and translates an uploaded page scan. With book_id the result is also
// appended to that book, and the book's last page supplies the previous text when none is given.
func (h *Handler) HandleOCR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeError(w, "Failed to read form: "+err.Error(), http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	fileData, filename, ok := h.readPageImage(w, r)
	if !ok {
		return
	}

	previous := r.FormValue("previous_german")

	var err error
	var bookID int64
	if raw := strings.TrimSpace(r.FormValue("book_id")); raw != "" {
		bookID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || bookID <= 0 {
			h.writeError(w, "invalid book_id", http.StatusBadRequest)
			return
		}
		if _, err := h.store.GetBook(r.Context(), bookID); err != nil {
			h.writeStoreError(w, err)
			return
		}
		if previous == "" {
			previous, err = h.pipeline.PreviousGerman(r.Context(), bookID)
			if err != nil {
				h.writeStoreError(w, err)
				return
			}
		}
	}

	slog.Info("Processing page image", "filename", filename, "bytes", len(fileData), "book_id", bookID, "has_previous", previous != "")

	result, err := h.pipeline.ProcessPage(r.Context(), pipeline.PageInput{
		Image:          fileData,
		Filename:       filename,
		PreviousGerman: previous,
	})
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"success":         true,
		"original":        result.Original,
		"korean":          result.Korean,
		"english":         result.English,
		"sentences":       result.Sentences,
		"filename":        result.Filename,
		"stored_filename": result.StoredFilename,
		"page_type":       result.PageType,
		"content_images":  result.ContentBlocks,
	}
	if previous != "" {
		response["merged_from_previous"] = result.MergedFromPrevious
	}

	if bookID > 0 {
		page, err := h.pipeline.Persist(r.Context(), bookID, result)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		slog.Info("Page stored from OCR", "book_id", bookID, "page_id", page.ID, "page_number", page.PageNumber)
		response["page"] = page
	}

	h.writeJSON(w, http.StatusOK, response)
}

// readPageImage returns the uploaded "image" file, or downloads "image_url" when no file is sent
func (h *Handler) readPageImage(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		imageURL := strings.TrimSpace(r.FormValue("image_url"))
		if imageURL == "" {
			h.writeError(w, "No image provided", http.StatusBadRequest)
			return nil, "", false
		}
		img, err := h.fetcher.Fetch(r.Context(), imageURL)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return nil, "", false
		}
		return img.Data, img.Filename, true
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return nil, "", false
	}
	if int64(len(fileData)) > h.opts.MaxUploadBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %dMB)", h.opts.MaxUploadBytes>>20), http.StatusBadRequest)
		return nil, "", false
	}
	if len(fileData) == 0 {
		h.writeError(w, "No image provided", http.StatusBadRequest)
		return nil, "", false
	}
	return fileData, header.Filename, true
}
