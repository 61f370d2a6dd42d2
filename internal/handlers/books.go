package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
)

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.store.ListBooks(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"books":   books,
	})
}

func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	request, err := parseJSON[struct {
		Title            string `json:"title"`
		Author           string `json:"author"`
		OriginalLanguage string `json:"original_language"`
	}](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	book := &models.Book{
		Title:            request.Title,
		Author:           request.Author,
		OriginalLanguage: request.OriginalLanguage,
	}
	if err := h.store.CreateBook(r.Context(), book); err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Book created", "book_id", book.ID, "title", book.Title)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"book":    book,
	})
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.store.GetBook(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"book":    book,
	})
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	update, err := parseJSON[storage.BookUpdate](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.store.UpdateBook(r.Context(), id, update)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"book":    book,
	})
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteBook(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Book deleted", "book_id", id)
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) HandleBookPages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.store.GetBook(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	pages, err := h.store.ListPages(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"book_id": book.ID,
		"title":   book.Title,
		"pages":   pages,
	})
}

func (h *Handler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	np, err := parseJSON[storage.NewPage](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.store.AddPage(r.Context(), id, np)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Page added", "book_id", id, "page_id", page.ID, "page_number", page.PageNumber)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"page":    page,
	})
}
