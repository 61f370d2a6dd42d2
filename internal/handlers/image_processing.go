package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/wagner/internal/imaging"
	"github.com/lehigh-university-libraries/wagner/internal/models"
)

type recropRequest struct {
	BlockIndex *int     `json:"block_index"`
	CropTop    *float64 `json:"crop_top"`
	CropBottom *float64 `json:"crop_bottom"`
}

// HandleRecrop changes the crop bounds of one content block and cuts a new image for it
// from the page's original scan
func (h *Handler) HandleRecrop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	request, err := parseJSON[recropRequest](r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	index, top, bottom := 0, 0.0, 100.0
	if request.BlockIndex != nil {
		index = *request.BlockIndex
	}
	if request.CropTop != nil {
		top = *request.CropTop
	}
	if request.CropBottom != nil {
		bottom = *request.CropBottom
	}

	page, err := h.store.GetPage(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	blocks, err := models.ParseContentBlocks(page.ContentImages)
	if err != nil {
		h.writeError(w, "Failed to read content blocks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if index < 0 || index >= len(blocks) {
		h.writeError(w, "Invalid block index", http.StatusBadRequest)
		return
	}
	if err := imaging.ValidateBounds(top, bottom); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	block := &blocks[index]
	block.CropPercent = &models.CropPercent{Top: top, Bottom: bottom}

	if original := h.originalImage(page.OriginalImageURL); original != "" {
		name, err := imaging.CropFile(h.opts.UploadsDir, original, top, bottom)
		if err != nil {
			h.writeError(w, "Failed to crop image: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if err := imaging.RemoveCrop(h.opts.UploadsDir, block.ImageFile); err != nil {
			slog.Warn("Failed to remove previous crop", "file", block.ImageFile, "err", err)
		}
		block.ImageFile = name
		slog.Info("Block re-cropped", "page_id", id, "block", index, "file", name, "top", top, "bottom", bottom)
	} else {
		slog.Warn("Original image missing, crop bounds saved without a new image", "page_id", id)
	}

	page, err = h.store.UpdateContentImages(r.Context(), id, blocks)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page":    page,
	})
}

// originalImage returns the stored scan name when the file exists in the uploads directory
func (h *Handler) originalImage(stored string) string {
	if stored == "" {
		return ""
	}
	name := filepath.Base(stored)
	width, height, err := imaging.Dimensions(filepath.Join(h.opts.UploadsDir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read original image", "file", name, "err", err)
		}
		return ""
	}
	slog.Debug("Original image", "file", name, "width", width, "height", height)
	return name
}
