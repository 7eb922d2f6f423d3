package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/middleware"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/service"
)

// ContentHandler handles HTTP requests for source content.
type ContentHandler struct {
	svc    *service.ContentService
	logger *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(svc *service.ContentService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/content.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	accountID := middleware.GetAccountID(r.Context())
	item, err := h.svc.Create(r.Context(), service.CreateContentInput{
		AccountID:  accountID,
		Title:      req.Title,
		SourceType: model.SourceType(req.SourceType),
		RawText:    req.RawText,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("content_created",
		"account_id", accountID,
		"content_item_id", item.ID,
		"length", len(item.RawText),
	)
	writeJSON(w, http.StatusCreated, dto.ToContentResponse(item))
}

// Get handles GET /api/v1/content/{id}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Content ID is required")
		return
	}

	item, err := h.svc.Get(r.Context(), middleware.GetAccountID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToContentResponse(item))
}
