package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/wagner/internal/models"
	"github.com/lehigh-university-libraries/wagner/internal/storage"
)

var historyFields = map[string]string{
	"":        "",
	"korean":  models.FieldKorean,
	"english": models.FieldEnglish,

	models.FieldKorean:  models.FieldKorean,
	models.FieldEnglish: models.FieldEnglish,
}

func (h *Handler) HandleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	update, err := parseJSON[storage.PageUpdate](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.store.UpdatePage(r.Context(), id, update)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page":    page,
	})
}

func (h *Handler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.DeletePage(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Page deleted", "page_id", id)
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) HandleMovePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	request, err := parseJSON[struct {
		Direction string `json:"direction"` // "up" or "down"
	}](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	pages, err := h.store.MovePage(r.Context(), id, request.Direction)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pages":   pages,
	})
}

// HandleRetranslate translates the page's German text again and stores the result as a new
// version of both translations
func (h *Handler) HandleRetranslate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	request, err := parseJSON[struct {
		Field string `json:"field"`
	}](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	switch request.Field {
	case "korean", "english", "all":
	default:
		h.writeError(w, "Invalid field", http.StatusBadRequest)
		return
	}

	page, err := h.store.GetPage(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	sentences, err := h.gateway.TranslateWithSentenceMapping(r.Context(), page.GermanText)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page, version, err := h.store.ApplyRetranslation(r.Context(), id, sentences)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Page retranslated", "page_id", id, "field", request.Field, "version", version)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"page":        page,
		"new_version": version,
	})
}

func (h *Handler) HandlePageHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	field, ok := historyFields[r.URL.Query().Get("field")]
	if !ok {
		h.writeError(w, "Invalid field", http.StatusBadRequest)
		return
	}

	history, err := h.store.ListHistory(r.Context(), id, field)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page_id": id,
		"history": history,
	})
}

func (h *Handler) HandleActivateHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	historyID, err := pathID(r, "historyID")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.store.ActivateHistory(r.Context(), id, historyID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Translation version restored", "page_id", id, "history_id", historyID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page":    page,
	})
}
