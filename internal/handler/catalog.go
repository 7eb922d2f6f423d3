package handler

import (
	"net/http"

	"github.com/recast/recast/internal/catalog"
	"github.com/recast/recast/internal/handler/dto"
)

// CatalogHandler serves the static format, tone and model registries.
type CatalogHandler struct{}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// Formats handles GET /api/v1/catalog/formats.
func (h *CatalogHandler) Formats(w http.ResponseWriter, r *http.Request) {
	setCatalogCache(w)
	writeJSON(w, http.StatusOK, dto.FormatListResponse{Data: catalog.Formats()})
}

// Tones handles GET /api/v1/catalog/tones.
func (h *CatalogHandler) Tones(w http.ResponseWriter, r *http.Request) {
	setCatalogCache(w)
	writeJSON(w, http.StatusOK, dto.ToneListResponse{Data: catalog.Tones()})
}

// Models handles GET /api/v1/catalog/models.
func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	setCatalogCache(w)
	writeJSON(w, http.StatusOK, dto.ToModelListResponse(catalog.Models()))
}

// The catalog only changes with a deploy.
func setCatalogCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public, max-age=300")
}
